package main

import (
	"fmt"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or edit the stored settings",
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	var flagReveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings()
			if err != nil {
				return err
			}
			defer store.Close()
			cfg, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !flagReveal {
				cfg = cfg.Redacted()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:        %s\n", store.Path())
			fmt.Fprintf(out, "credential:  %s\n", cfg.Credential)
			fmt.Fprintf(out, "destination: %s\n", cfg.DestinationID)
			fmt.Fprintf(out, "interval:    %d\n", cfg.IntervalSeconds)
			fmt.Fprintf(out, "device:      %d\n", cfg.DeviceIndex)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagReveal, "reveal", false, "Print the credential unmasked")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		flagCredential  string
		flagDestination string
		flagInterval    int
		flagDevice      int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update stored settings",
		Long:  "Writes the given fields to the settings store. The device index is checked when the loop starts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd.Flags().Changed, configFlagNames...) {
				return fmt.Errorf("nothing to set, pass at least one of --credential --destination --interval --device")
			}
			if cmd.Flags().Changed("interval") && flagInterval < 1 {
				return fmt.Errorf("--interval must be >= 1, got %d", flagInterval)
			}
			if cmd.Flags().Changed("device") && flagDevice < 0 {
				return fmt.Errorf("--device must be >= 0, got %d", flagDevice)
			}
			store, err := openSettings()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			cfg := loadSettings(ctx, store)
			applyOverrides(&cfg, flagCredential, flagDestination, flagInterval, flagDevice, cmd.Flags().Changed)
			if err := store.Save(ctx, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", store.Path())
			return nil
		},
	}

	addConfigFlags(cmd, &flagCredential, &flagDestination, &flagInterval, &flagDevice)
	return cmd
}

var _ camnotify.SettingsStore = (*camnotify.KVSettings)(nil)
