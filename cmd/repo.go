package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/core"
	"github.com/inovacc/repoload/internal/model"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Register and list repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Register repositories into a repo group",
	Long: `Register one or more repositories into an existing repo group.

Every repository is also added to the CLI default group. Registering a URL
that is already in the catalog moves it to the given group and keeps its
collection status unless --reset-status is set.

Examples:
  repoload repo add https://github.com/chaoss/augur
  repoload repo add --group-id 12 git@github.com:chaoss/grimoirelab.git`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRepoAdd,
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog repositories",
	Long: `List catalog repositories, optionally only those owned by a group.

Use --member to list the repositories linked to the group instead of the
ones it owns.`,
	Args: cobra.NoArgs,
	RunE: runRepoList,
}

var repoStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Set the collection status of a repository",
	Long: `Set the collection status of a repository by hand.

Valid statuses: New, Updating, Collecting, Complete, Error.`,
	Args: cobra.ExactArgs(2),
	RunE: runRepoStatus,
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoStatusCmd)

	repoAddCmd.Flags().Int64("group-id", model.CLIDefaultGroupID, "Repo group that owns the repositories")
	repoAddCmd.Flags().Bool("reset-status", false, "Reset the collection status of existing repositories to New")

	repoListCmd.Flags().Int64("group-id", 0, "Only list repositories of this group (0 for all)")
	repoListCmd.Flags().Bool("member", false, "Select by group membership instead of ownership")
	repoListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRepoAdd(cmd *cobra.Command, args []string) error {
	groupID, _ := cmd.Flags().GetInt64("group-id")
	reset, _ := cmd.Flags().GetBool("reset-status")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	failed := 0

	for _, url := range args {
		id, err := a.ctrl.AddCLIRepo(cmd.Context(), core.CLIRepo{
			URL:         url,
			RepoGroupID: groupID,
			ResetStatus: reset,
		})
		if err != nil {
			failed++

			_, _ = fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), url, err)

			if core.KindOf(err) == core.KindStorage {
				return err
			}

			continue
		}

		_, _ = fmt.Fprintf(out, "%s %s (id %d)\n", okStyle.Render("✓"), url, id)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(args))
	}

	return nil
}

func runRepoList(cmd *cobra.Command, _ []string) error {
	groupID, _ := cmd.Flags().GetInt64("group-id")
	member, _ := cmd.Flags().GetBool("member")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	var repos []model.Repository
	if member {
		repos, err = a.store.ListReposByGroup(cmd.Context(), groupID)
	} else {
		repos, err = a.store.ListRepos(cmd.Context(), groupID)
	}

	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if jsonOutput {
		if repos == nil {
			repos = []model.Repository{}
		}

		return printJSON(out, repos)
	}

	if len(repos) == 0 {
		printEmptyResult(out, "repositories", "repoload repo add <url>")
		return nil
	}

	printReposTable(cmd, repos)

	return nil
}

func runRepoStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid repository id %q", args[0])
	}

	status := model.RepoStatus(args[1])
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", args[1])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	if err := a.store.SetRepoStatus(cmd.Context(), id, status); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s repository %d is now %s\n", okStyle.Render("✓"), id, status)

	return nil
}

func printReposTable(cmd *cobra.Command, repos []model.Repository) {
	out := cmd.OutOrStdout()

	maxURL := 10
	for _, r := range repos {
		maxURL = max(maxURL, len(r.URL))
	}

	maxURL = min(maxURL, 60)

	_, _ = fmt.Fprintf(out, "%s  %s  %s  %s  %s  %s\n",
		headerStyle.Render(padRight("ID", 6)),
		headerStyle.Render(padRight("URL", maxURL)),
		headerStyle.Render(padRight("GROUP", 6)),
		headerStyle.Render(padRight("STATUS", 10)),
		headerStyle.Render(padRight("SOURCE", 8)),
		headerStyle.Render("UPDATED"),
	)
	_, _ = fmt.Fprintln(out, strings.Repeat("-", maxURL+54))

	for _, r := range repos {
		url := truncateString(r.URL, maxURL)
		if r.ArchivedAt != nil {
			url = subtleStyle.Render(padRight(url, maxURL))
		} else {
			url = padRight(url, maxURL)
		}

		_, _ = fmt.Fprintf(out, "%s  %s  %s  %s  %s  %s\n",
			padRight(strconv.FormatInt(r.ID, 10), 6),
			url,
			countStyle.Render(padRight(strconv.FormatInt(r.GroupID, 10), 6)),
			padRight(string(r.Status), 10),
			padRight(r.Source, 8),
			formatTime(r.UpdatedAt),
		)
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "Total: %d repositories\n", len(repos))
}
