package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	camnotify "github.com/httprunner/CamNotify"
	"github.com/httprunner/CamNotify/internal/env"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "camnotify",
	Short: "Capture still images on a schedule and post them to a Feishu chat",
	Long: fmt.Sprintf(`camnotify grabs one frame from a local capture device at a fixed interval and posts
it to a Feishu/Lark group chat. Settings are kept in a local store and written on every start.

Environment is read from a .env file found upward from the working directory, or from
the file named by $%s. Set $%s=1 for JSON log lines.`, camnotify.EnvDotEnv, camnotify.EnvLogJSON),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyLogLevel(rootLogLevel)
	},
	SilenceUsage: true,
}

var (
	rootSettings string
	rootDriver   string
	rootLogLevel string
)

func init() {
	log.Logger = newLogger(os.Stderr, env.Bool(camnotify.EnvLogJSON, false))
	rootCmd.PersistentFlags().StringVar(&rootSettings, "settings", "", "Settings store path overriding $CAMNOTIFY_SETTINGS_PATH")
	rootCmd.PersistentFlags().StringVar(&rootDriver, "driver", "", "Capture driver (v4l2|adb) overriding $CAMNOTIFY_DRIVER")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.AddCommand(
		newRunCmd(),
		newConsoleCmd(),
		newSnapCmd(),
		newDevicesCmd(),
		newSettingsCmd(),
	)
	_ = env.Ensure()
}

func newLogger(w io.Writer, jsonLines bool) zerolog.Logger {
	if !jsonLines {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func applyLogLevel(raw string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("camnotify command failed")
	}
}
