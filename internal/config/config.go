// Package config loads and saves the designer's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/ha1tch/flowdesigner/pkg/backend"
	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/layout"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the designer configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Canvas   CanvasConfig   `toml:"canvas"`
	Layout   LayoutConfig   `toml:"layout"`
	Autosave AutosaveConfig `toml:"autosave"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig locates the forms backend.
type APIConfig struct {
	BaseURL string   `toml:"base_url" validate:"omitempty,url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout" validate:"gt=0"`
	Retries int      `toml:"retries" validate:"gte=0,lte=10"`
	Backoff Duration `toml:"backoff" validate:"gt=0"`
}

// CanvasConfig controls editing behaviour.
type CanvasConfig struct {
	GridSize  float64 `toml:"grid_size" validate:"gte=0,lte=200"`
	Snap      float64 `toml:"snap" validate:"gt=0"`
	Width     int     `toml:"width" validate:"gt=0"`
	Height    int     `toml:"height" validate:"gt=0"`
	UndoLimit int     `toml:"undo_limit" validate:"gte=1,lte=1000"`
}

// LayoutConfig controls auto-arrange spacing.
type LayoutConfig struct {
	BaseX        float64 `toml:"base_x" validate:"gte=0"`
	LevelSpacing float64 `toml:"level_spacing" validate:"gt=0"`
	NodeSpacing  float64 `toml:"node_spacing" validate:"gt=0"`
	CenterY      float64 `toml:"center_y" validate:"gte=0"`
}

// AutosaveConfig controls periodic saving in the editor.
type AutosaveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval" validate:"gt=0"`
	Target   string   `toml:"target" validate:"oneof=file api"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
	File   string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: Duration(30 * time.Second),
			Retries: 3,
			Backoff: Duration(200 * time.Millisecond),
		},
		Canvas: CanvasConfig{
			GridSize:  layout.DefaultGrid,
			Snap:      25,
			Width:     1200,
			Height:    800,
			UndoLimit: 50,
		},
		Layout: LayoutConfig{
			BaseX:        100,
			LevelSpacing: 250,
			NodeSpacing:  120,
			CenterY:      2000,
		},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Interval: Duration(30 * time.Second),
			Target:   "file",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the configuration directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "flowdesigner")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every setting against its allowed range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "url":
		return fmt.Errorf("%s: %q is not a URL", field, e.Value())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
	case "gt":
		return fmt.Errorf("%s: must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "lte":
		return fmt.Errorf("%s: must be at most %s", field, e.Param())
	}
	return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
}

// CanvasOptions converts the configuration into canvas options.
func (c *Config) CanvasOptions() canvas.Options {
	opts := canvas.DefaultOptions()
	opts.Grid = c.Canvas.GridSize
	opts.SnapRadius = c.Canvas.Snap
	opts.UndoLimit = c.Canvas.UndoLimit
	opts.Layout = c.LayoutOptions()
	return opts
}

// LayoutOptions converts the layout section into auto-arrange options.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		BaseX:        c.Layout.BaseX,
		LevelSpacing: c.Layout.LevelSpacing,
		NodeSpacing:  c.Layout.NodeSpacing,
		CenterY:      c.Layout.CenterY,
	}
}

// ViewportSize returns the configured viewport size in screen units.
func (c *Config) ViewportSize() geom.Point {
	return geom.Pt(float64(c.Canvas.Width), float64(c.Canvas.Height))
}

// BackendOptions converts the api section into client options.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		BaseURL: c.API.BaseURL,
		Token:   c.API.Token,
		Timeout: c.API.Timeout.Std(),
		Retry: backend.RetryPolicy{
			MaxRetries: c.API.Retries,
			BaseDelay:  c.API.Backoff.Std(),
			MaxDelay:   c.API.Backoff.Std() * 32,
		},
	}
}
