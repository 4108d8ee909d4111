// Package cli implements the taskr command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/nissyi-gh/taskr/internal/app"
	"github.com/nissyi-gh/taskr/internal/config"
	"github.com/nissyi-gh/taskr/internal/logging"
	"github.com/nissyi-gh/taskr/internal/ui"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskr",
	Short: "taskr - offline-first task manager",
	Long: `taskr keeps your tasks in a local SQLite cache and, once you sign in,
mirrors them to a shared MySQL store. Changes made while the store is
unreachable are queued and replayed on reconnect.

Run without a subcommand to open the task view.`,
	RunE:          runTUI, // Default action is the TUI
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/taskr/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also log to stderr")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// openApp loads config, builds the logger and assembles the app. The
// returned func closes both.
func openApp(ctx context.Context, console bool) (*app.App, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, syncLog, err := logging.New(logging.Options{
		File:    cfg.Log.File,
		Level:   cfg.Log.Level,
		Console: console && (cfg.Log.Console || verbose),
	})
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		syncLog()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			log.Warnw("shutdown", "error", err)
		}
		syncLog()
	}, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Console logging would draw over the alt screen.
	a, closeApp, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp()

	go a.Watch(ctx)
	return ui.Run(ctx, a.Service, a.Tracker, a.Session)
}
