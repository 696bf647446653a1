package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/directory"
)

var (
	groupsJSON  bool
	membersJSON bool
)

var groupsCmd = &cobra.Command{
	Use:     "groups",
	Short:   "Inspect directory groups",
	GroupID: groupCore,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Long: `List directory groups as a table or as JSON.

Member lists are not included; use 'steward groups members' for one
group's membership.

Examples:
  steward groups list
  steward groups list --json | jq -r '.[].id'`,
	RunE: runGroupsList,
}

var groupsMembersCmd = &cobra.Command{
	Use:   "members <group-id>",
	Short: "List the members of a group",
	Args:  cobra.ExactArgs(1),
	Long: `List the members of one group as a table or as JSON.

Examples:
  steward groups members g-admins
  steward groups members g-admins --json`,
	RunE: runGroupsMembers,
}

func init() {
	groupsListCmd.Flags().BoolVar(&groupsJSON, "json", false, "Emit JSON instead of a table")
	groupsMembersCmd.Flags().BoolVar(&membersJSON, "json", false, "Emit JSON instead of a table")
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsMembersCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newReadClient(cfg)
	ctx, cancel := opContext(cfg)
	defer cancel()

	groups, err := client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	if groupsJSON {
		if groups == nil {
			groups = []directory.GroupSummary{}
		}
		return printJSON(groups)
	}

	printGroupTable(groups)
	return nil
}

func runGroupsMembers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newReadClient(cfg)
	ctx, cancel := opContext(cfg)
	defer cancel()

	group, err := client.GetGroup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	if membersJSON {
		return printJSON(group)
	}

	name := group.DisplayName
	if name == "" {
		name = group.ID
	}
	fmt.Printf("%s%s%s  %s%s%s\n\n", colorBold, name, colorReset, colorDim, group.ID, colorReset)
	printUserTable(group.Members)
	return nil
}

func printGroupTable(groups []directory.GroupSummary) {
	if len(groups) == 0 {
		fmt.Println("No groups found.")
		return
	}

	nameW, _ := userColumnWidths()
	fmt.Printf("%s%s  %s  %s%s\n", colorBold, padCell("NAME", nameW), padCell("CREATED", 10), "ID", colorReset)
	for _, g := range groups {
		created := "-"
		if !g.CreationDate.IsZero() {
			created = g.CreationDate.Format("2006-01-02")
		}
		fmt.Printf("%s  %s  %s%s%s\n",
			padCell(g.DisplayName, nameW),
			padCell(created, 10),
			colorDim, g.ID, colorReset)
	}

	fmt.Println()
	fmt.Printf("%s%d group(s)%s\n", colorDim, len(groups), colorReset)
}
