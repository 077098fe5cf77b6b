package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCalendarsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars visible to a linked account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			infos, err := app.service.ListCalendars(ctx, user)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUMMARY\tROLE\tPRIMARY")
			for _, info := range infos {
				primary := ""
				if info.Primary {
					primary = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Summary, info.AccessRole, primary)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity whose calendars to list")
	return cmd
}
