// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/launchkit/internal/issue"
)

// newIssueCommand creates the `launchkit issue` command, which renders the
// troubleshooting catalog.
func newIssueCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "issue [name]",
		Short: "Show troubleshooting help for a launch failure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Troubleshooting topics"))
				fmt.Fprintln(app.stdout)
				for _, is := range issue.Values() {
					fmt.Fprintf(app.stdout, "  %s\n", CmdStyle.Render(is.Name()))
				}
				return nil
			}

			is, ok := issue.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown issue %q, run 'launchkit issue' to list them", args[0])
			}
			rendered, err := is.Render("dark")
			if err != nil {
				return fmt.Errorf("failed to render issue %q: %w", is.Name(), err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}
