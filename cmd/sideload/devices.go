package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/ui"
)

func newDevicesCmd(a *app) *cobra.Command {
	var simulator, asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List deploy targets and show which one deploy would pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := device.DestinationDevice
			if simulator {
				dest = device.DestinationSimulator
			}
			records, err := device.NewCatalog(a.runner, a.logger).Candidates(cmd.Context(), dest, device.PlatformIOS)
			if err != nil {
				return err
			}

			if asJSON {
				if records == nil {
					records = []device.Record{}
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				fmt.Fprintln(a.stderr, ui.Warn("no "+string(dest)+"s found"))
				return nil
			}
			selected, _ := device.Select(records, "")
			fmt.Fprintln(a.stdout, ui.DeviceTable(records, selected.Core))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&simulator, "simulator", "s", false, "list simulators instead of physical devices")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}
