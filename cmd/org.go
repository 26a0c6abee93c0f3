package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/core"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Register GitHub organizations",
}

var orgAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Register every repository of an organization",
	Long: `Register every repository of one or more GitHub organizations.

Each organization gets a repo group named after it, created on first use.
Its repositories are owned by that group and linked to the CLI default
group. Re-running the command picks up new repositories and leaves the
existing ones in place.

Authentication:
  Token is automatically detected from (in order):
  - --token flag
  - github.token in the config file
  - GITHUB_TOKEN environment variable
  - GH_TOKEN environment variable
  - gh CLI (if authenticated via 'gh auth login')

Examples:
  repoload org add chaoss
  repoload org add --yes chaoss https://github.com/oss-compass`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOrgAdd,
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgAddCmd)

	orgAddCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
	orgAddCmd.Flags().Bool("json", false, "Output summaries as JSON")
}

func runOrgAdd(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	out := cmd.OutOrStdout()

	if !yes {
		prompt := fmt.Sprintf("Register all repositories of %s? [y/N]: ", strings.Join(args, ", "))
		if !promptConfirm(cmd.InOrStdin(), out, prompt) {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	var (
		summaries []core.OrgSummary
		errs      []error
	)

	for _, name := range args {
		if !jsonOutput {
			_, _ = fmt.Fprintf(out, "Fetching repositories of %s...\n", name)
		}

		summary, err := a.ctrl.AddCLIOrg(cmd.Context(), name)
		summaries = append(summaries, summary)

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))

			if !jsonOutput {
				_, _ = fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), name, err)
			}

			if core.KindOf(err) == core.KindStorage {
				break
			}

			continue
		}

		if !jsonOutput {
			printOrgSummary(cmd, summary)
		}
	}

	if jsonOutput {
		if err := printJSON(out, summaries); err != nil {
			return err
		}
	}

	return errors.Join(errs...)
}

func printOrgSummary(cmd *cobra.Command, s core.OrgSummary) {
	printInfoBox(cmd.OutOrStdout(), "Organization "+s.Org, map[string]string{
		"Group":    strconv.FormatInt(s.GroupID, 10),
		"Repos":    countStyle.Render(strconv.Itoa(s.Added)),
		"New":      strconv.Itoa(s.Created),
		"Duration": s.Duration.Round(time.Millisecond).String(),
		"Batch":    s.BatchID,
	}, []string{"Group", "Repos", "New", "Duration", "Batch"})
}
