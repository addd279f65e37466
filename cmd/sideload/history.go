package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/sideload/internal/ui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.store.RecentDeploys(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.stderr, ui.DimStyle.Render("no deployments recorded yet in "+a.store.Root()))
				return nil
			}
			for _, r := range records {
				badge := ui.SuccessBadge("OK")
				if !r.Success {
					badge = ui.ErrorBadge(r.Stage)
				}
				name := r.DeviceName
				if name == "" {
					name = r.Device
				}
				line := fmt.Sprintf("%s %s  %s  %s %s  %s",
					r.Timestamp.Local().Format("2006-01-02 15:04:05"), badge, name,
					r.Destination, r.Profile, ui.DimStyle.Render(r.Duration))
				if r.Reason != "" {
					line += "  " + ui.DimStyle.Render(r.Reason)
				}
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}
