package main

import (
	"os"
	"os/signal"
	"syscall"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func addConfigFlags(cmd *cobra.Command, credential, destination *string, interval, device *int) {
	cmd.Flags().StringVar(credential, "credential", "", "Tenant access token overriding the stored credential")
	cmd.Flags().StringVar(destination, "destination", "", "Chat id overriding the stored destination")
	cmd.Flags().IntVar(interval, "interval", camnotify.DefaultIntervalSeconds, "Seconds between captures overriding the stored interval")
	cmd.Flags().IntVar(device, "device", camnotify.DefaultDeviceIndex, "Capture device index overriding the stored device")
}

func newRunCmd() *cobra.Command {
	var (
		flagCredential  string
		flagDestination string
		flagInterval    int
		flagDevice      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the capture loop and run until interrupted",
		Long: "Loads the stored settings, applies flag overrides, starts the scheduler and stops it on SIGINT or SIGTERM.\n" +
			"The first capture happens one interval after start, not immediately.",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildRuntime(nil)
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx := cmd.Context()
			cfg := loadSettings(ctx, deps.store)
			applyOverrides(&cfg, flagCredential, flagDestination, flagInterval, flagDevice, cmd.Flags().Changed)

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := deps.scheduler.Start(sigCtx, cfg); err != nil {
				return err
			}
			log.Info().
				Str("settings", deps.store.Path()).
				Int("device_index", cfg.DeviceIndex).
				Int("interval_seconds", cfg.IntervalSeconds).
				Msg("camnotify running, press Ctrl+C to stop")

			<-sigCtx.Done()
			deps.scheduler.Stop()
			stats := deps.scheduler.Stats()
			log.Info().
				Int("cycles", stats.Cycles).
				Int("successes", stats.Successes).
				Int("capture_failures", stats.CaptureFailures).
				Int("upload_failures", stats.UploadFailures).
				Msg("camnotify stopped")
			return nil
		},
	}

	addConfigFlags(cmd, &flagCredential, &flagDestination, &flagInterval, &flagDevice)
	return cmd
}
