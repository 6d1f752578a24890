package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSnapCmd() *cobra.Command {
	var (
		flagCredential  string
		flagDestination string
		flagInterval    int
		flagDevice      int
	)

	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Capture and post a single image",
		Long:  "Runs one capture-then-upload cycle with the stored settings and flag overrides. Settings are not saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildRuntime(nil)
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			cfg := loadSettings(ctx, deps.store)
			applyOverrides(&cfg, flagCredential, flagDestination, flagInterval, flagDevice, cmd.Flags().Changed)
			if err := cfg.Validate(ctx, deps.catalog); err != nil {
				return err
			}

			res := deps.scheduler.RunOnce(ctx, cfg)
			if res.Err != nil {
				return fmt.Errorf("%s: %w", res.Outcome, res.Err)
			}
			log.Info().
				Str("cycle_id", res.ID).
				Str("message_id", res.Confirmation.MessageID).
				Str("image_key", res.Confirmation.ImageKey).
				Dur("elapsed", res.Duration).
				Msg("snapshot posted")
			fmt.Fprintln(cmd.OutOrStdout(), res.Confirmation.MessageID)
			return nil
		},
	}

	addConfigFlags(cmd, &flagCredential, &flagDestination, &flagInterval, &flagDevice)
	return cmd
}
