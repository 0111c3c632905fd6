// Command barshell runs the notification tray and its status readouts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/barshell/internal/config"
	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/shell"
	"github.com/example/barshell/internal/tray"
)

var version = "dev"

type rootOptions struct {
	debug      bool
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "barshell",
		Short: "Notification tray and status bar readouts",
		Long: `barshell watches the session bus for desktop notifications and keeps a
short history of them in a tray icon, next to do-not-disturb, volume,
network, system and media readouts.`,
		Example: `  # Run with a tray icon
  barshell run

  # Emit waybar JSON lines instead
  barshell run --waybar

  # Feed a saved dbus-monitor capture through the parser
  barshell replay capture.txt --json`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.configPath != "" {
				if err := os.Setenv(config.PathEnv, opts.configPath); err != nil {
					return err
				}
			}
			// A broken file is reported by the command that loads it.
			if cfg, err := config.Load(); opts.debug || (err == nil && cfg.General.Debug) {
				logging.EnableDebug()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/barshell/shell.toml)")

	root.AddCommand(
		newRunCmd(),
		newReplayCmd(),
		newStatusCmd(),
		newDNDCmd(),
		newMediaCmd(),
		newConfigCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	var waybar bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the notification tray",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			mode := tray.ModeAuto
			if waybar {
				mode = tray.ModeWaybar
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := shell.New(shell.Options{Config: cfg, Mode: mode, Output: cmd.OutOrStdout()})
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&waybar, "waybar", false, "Write waybar JSON lines to stdout instead of showing a tray icon")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), d)
}
