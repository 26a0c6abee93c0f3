package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/store"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage repo groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a repo group",
	Long: `Create a repo group.

With --actor the group is created for that user and becomes addressable by
name from the web API. Without it the group is system owned and its name
must be unique.`,
	Args: cobra.ExactArgs(1),
	RunE: runGroupCreate,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repo groups",
	Args:  cobra.NoArgs,
	RunE:  runGroupList,
}

var groupUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename or describe a repo group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupUpdate,
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd, groupListCmd, groupUpdateCmd)

	groupCreateCmd.Flags().String("description", "", "Group description")
	groupCreateCmd.Flags().Int64("actor", 0, "Create the group for this user id")

	groupListCmd.Flags().Int64("actor", 0, "List the groups of this user id")
	groupListCmd.Flags().Bool("json", false, "Output as JSON")

	groupUpdateCmd.Flags().String("name", "", "New group name")
	groupUpdateCmd.Flags().String("description", "", "New group description")
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	actor, _ := cmd.Flags().GetInt64("actor")

	name := strings.TrimSpace(args[0])
	if name == "" {
		return errors.New("group name is required")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()

	if actor > 0 {
		ug, err := a.store.CreateUserGroup(cmd.Context(), actor, name, description)
		if err != nil {
			return fmt.Errorf("creating group %q: %w", name, err)
		}

		_, _ = fmt.Fprintf(out, "%s group %q created for user %d (id %d)\n", okStyle.Render("✓"), ug.Name, ug.ActorID, ug.GroupID)

		return nil
	}

	g, err := a.store.CreateGroup(cmd.Context(), store.CreateGroupParams{Name: name, Description: description})
	if err != nil {
		return fmt.Errorf("creating group %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(out, "%s group %q created (id %d)\n", okStyle.Render("✓"), g.Name, g.ID)

	return nil
}

func runGroupList(cmd *cobra.Command, _ []string) error {
	actor, _ := cmd.Flags().GetInt64("actor")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()

	if actor > 0 {
		groups, err := a.store.ListUserGroups(cmd.Context(), actor)
		if err != nil {
			return err
		}

		if jsonOutput {
			if groups == nil {
				groups = []model.UserGroup{}
			}

			return printJSON(out, groups)
		}

		if len(groups) == 0 {
			printEmptyResult(out, "groups", fmt.Sprintf("repoload group create <name> --actor %d", actor))
			return nil
		}

		_, _ = fmt.Fprintf(out, "%s  %s\n", headerStyle.Render(padRight("NAME", 24)), headerStyle.Render("GROUP"))

		for _, g := range groups {
			_, _ = fmt.Fprintf(out, "%s  %s\n", padRight(truncateString(g.Name, 24), 24), countStyle.Render(strconv.FormatInt(g.GroupID, 10)))
		}

		return nil
	}

	groups, err := a.store.ListGroups(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, groups)
	}

	_, _ = fmt.Fprintf(out, "%s  %s  %s  %s\n",
		headerStyle.Render(padRight("ID", 6)),
		headerStyle.Render(padRight("NAME", 24)),
		headerStyle.Render(padRight("OWNER", 6)),
		headerStyle.Render("DESCRIPTION"),
	)

	for _, g := range groups {
		owner := subtleStyle.Render(padRight("system", 6))
		if g.OwnerID != nil {
			owner = padRight(strconv.FormatInt(*g.OwnerID, 10), 6)
		}

		_, _ = fmt.Fprintf(out, "%s  %s  %s  %s\n",
			countStyle.Render(padRight(strconv.FormatInt(g.ID, 10), 6)),
			padRight(truncateString(g.Name, 24), 24),
			owner,
			truncateString(g.Description, 50),
		)
	}

	return nil
}

func runGroupUpdate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q", args[0])
	}

	if model.IsReservedGroup(id) {
		return fmt.Errorf("group %d is reserved and cannot be changed", id)
	}

	if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("description") {
		return errors.New("nothing to update: pass --name or --description")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	g, err := a.store.GetGroup(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("group %d: %w", id, err)
	}

	name, description := g.Name, g.Description

	if cmd.Flags().Changed("name") {
		name, _ = cmd.Flags().GetString("name")
		if strings.TrimSpace(name) == "" {
			return errors.New("group name cannot be empty")
		}
	}

	if cmd.Flags().Changed("description") {
		description, _ = cmd.Flags().GetString("description")
	}

	if err := a.store.UpdateGroup(cmd.Context(), id, name, description); err != nil {
		return fmt.Errorf("updating group %d: %w", id, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s group %d updated\n", okStyle.Render("✓"), id)

	return nil
}
