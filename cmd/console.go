package main

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	camnotify "github.com/httprunner/CamNotify"
	"github.com/spf13/cobra"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive control surface",
		Long: "Full-screen console to edit credential, destination, interval and device, then start and stop the capture loop.\n" +
			"The first capture happens one interval after start. Press f1 inside the console for key help.",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildRuntime(nil)
			if err != nil {
				return err
			}
			defer deps.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			console, err := camnotify.NewConsole(camnotify.ConsoleOptions{
				Scheduler: deps.scheduler,
				Catalog:   deps.catalog,
				Initial:   loadSettings(sigCtx, deps.store),
			})
			if err != nil {
				return err
			}
			return console.Run(sigCtx,
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
		},
	}
}
