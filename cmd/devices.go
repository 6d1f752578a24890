package main

import (
	"fmt"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	var flagMaxProbe int

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices that deliver a frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newDriver()
			if err != nil {
				return err
			}
			devices, err := camnotify.NewProbeCatalog(driver, flagMaxProbe).ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				log.Warn().Msg("no capture devices found")
				return nil
			}
			for _, idx := range devices {
				fmt.Fprintln(cmd.OutOrStdout(), idx)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flagMaxProbe, "max-probe", 0, "Highest index probed plus one (0 uses the default of 16)")
	return cmd
}
