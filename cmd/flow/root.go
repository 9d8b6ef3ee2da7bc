package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ha1tch/flowdesigner/internal/config"
	"github.com/ha1tch/flowdesigner/internal/logging"
	"github.com/ha1tch/flowdesigner/pkg/backend"
	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
)

var version = "0.3.0"

// app carries the state shared by every subcommand.
type app struct {
	cfgPath  string
	logLevel string
	cfg      *config.Config
	log      *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flow",
		Short: "flow: service flow designer toolkit",
		Long: brand.Sprint("flow") + ": create, check, arrange and export service flows\n" +
			subtle.Sprint("Documents are JSON (or YAML) files as written by the designer"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate("flow {{ .Version }}\n")
	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.Path(), "configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.newCmd(),
		a.infoCmd(),
		a.validateCmd(),
		a.arrangeCmd(),
		a.connectCmd(),
		a.suggestCmd(),
		a.exportCmd(),
		a.pagesCmd(),
		a.importPageCmd(),
		a.pushCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Format, level)
	if err != nil {
		return err
	}
	a.log = logger
	return nil
}

func (a *app) canvas(f *flow.ServiceFlow) *canvas.Canvas {
	opts := a.cfg.CanvasOptions()
	opts.Logger = a.log
	return canvas.New(f, opts)
}

func (a *app) client() *backend.Client {
	opts := a.cfg.BackendOptions()
	opts.Logger = a.log
	return backend.New(opts)
}

// loadArg loads the document named by a command argument.
func (a *app) loadArg(path string) (*flow.ServiceFlow, error) {
	f, err := flowfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	a.log.Debug("flow loaded", "path", path, "nodes", len(f.Nodes), "connections", len(f.Connections))
	return f, nil
}

func (a *app) saveArg(path string, f *flow.ServiceFlow) error {
	if err := flowfile.Save(path, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	a.log.Debug("flow written", "path", path)
	return nil
}
