package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/directory"
)

var (
	usersFilter string
	usersJSON   bool
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Short:   "Inspect directory users",
	GroupID: groupCore,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Long: `List directory users as a table or as JSON.

The --filter expression uses the console search syntax: bare words match
id, email and display name; field:value tokens constrain one attribute;
memberof:NAME restricts to members of the named group. Multiple tokens
must all match, and values with spaces can be quoted.

Examples:
  steward users list
  steward users list --filter alice
  steward users list --filter 'lastname:Stone memberof:Admins'
  steward users list --json | jq -r '.[].email'`,
	RunE: runUsersList,
}

func init() {
	usersListCmd.Flags().StringVar(&usersFilter, "filter", "", "Search expression (console syntax)")
	usersListCmd.Flags().BoolVar(&usersJSON, "json", false, "Emit JSON instead of a table")
	usersCmd.AddCommand(usersListCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	filter, err := directory.ParseQuery(usersFilter)
	if err != nil {
		return err
	}

	client := newReadClient(cfg)
	ctx, cancel := opContext(cfg)
	defer cancel()

	users, err := client.ListUsers(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if usersJSON {
		if users == nil {
			users = []directory.User{} // "[]", not "null", for empty results
		}
		return printJSON(users)
	}

	printUserTable(users)
	return nil
}

func printUserTable(users []directory.User) {
	if len(users) == 0 {
		fmt.Println("No users found.")
		return
	}

	nameW, emailW := userColumnWidths()
	fmt.Printf("%s%s  %s  %s%s\n", colorBold, padCell("NAME", nameW), padCell("EMAIL", emailW), "ID", colorReset)
	for _, u := range users {
		fmt.Printf("%s  %s  %s%s%s\n",
			padCell(u.Label(), nameW),
			padCell(u.Email, emailW),
			colorDim, u.ID, colorReset)
	}

	fmt.Println()
	fmt.Printf("%s%d user(s)%s\n", colorDim, len(users), colorReset)
}

// userColumnWidths sizes the name and email columns for the current
// terminal, leaving the id column to run free on the right.
func userColumnWidths() (nameW, emailW int) {
	nameW, emailW = 28, 32
	if terminalWidth() < 76 {
		nameW, emailW = 18, 24
	}
	return nameW, emailW
}

// padCell truncates or pads s to exactly width display columns.
func padCell(s string, width int) string {
	s = runewidth.Truncate(s, width, "…")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
