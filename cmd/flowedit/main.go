// Command flowedit is a terminal editor for service flows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/ha1tch/flowdesigner/internal/config"
	"github.com/ha1tch/flowdesigner/internal/logging"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flowedit: %v\n", err)
		stop()
		os.Exit(1)
	}
	stop()
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "flowedit [file]",
		Short:         "Edit a service flow in the terminal",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			// The screen owns the terminal, so logs go to a file.
			logPath := cfg.Log.File
			if logPath == "" {
				logPath = filepath.Join(config.Dir(), "flowedit.log")
			}
			logger, closeLog, err := logging.OpenFile(logPath, cfg.Log.Format, cfg.Log.Level)
			if err != nil {
				return err
			}
			defer closeLog()

			var (
				f        *flow.ServiceFlow
				filename string
			)
			if len(args) == 1 {
				filename = args[0]
				if _, err := os.Stat(filename); err == nil {
					if f, err = flowfile.Load(filename); err != nil {
						return fmt.Errorf("loading %s: %w", filename, err)
					}
				}
			}
			if f == nil {
				f = flow.New("Untitled")
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("creating screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("initializing screen: %w", err)
			}
			screen.EnableMouse()
			screen.Clear()
			defer screen.Fini()

			ed := newEditor(screen, f, filename, cfg, logger)
			logger.Info("editor started", "file", filename, "nodes", len(f.Nodes))
			ed.run(cmd.Context())
			logger.Info("editor stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.Path(), "configuration file")
	return cmd
}
