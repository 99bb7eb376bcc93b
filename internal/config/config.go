// Package config loads and watches the nextedit configuration.
//
// Configuration comes from a TOML file, overridden by NEXTEDIT_-prefixed
// environment variables. A missing file is not an error; defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that unmarshals from TOML strings like "75ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Backend BackendConfig `toml:"backend"`
	Suggest SuggestConfig `toml:"suggest"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// BackendConfig describes the suggestion backend subprocess.
type BackendConfig struct {
	// Command is the executable to spawn. Empty means the embedder
	// supplies a connection some other way.
	Command string `toml:"command"`

	// Args are passed to the command.
	Args []string `toml:"args"`

	// Languages limits the backend to these language IDs. Empty means all.
	Languages []string `toml:"languages"`

	// RequestTimeout bounds each suggestion request.
	RequestTimeout Duration `toml:"request_timeout"`
}

// SuggestConfig controls the suggestion engine.
type SuggestConfig struct {
	// Enabled turns the feature on at startup.
	Enabled bool `toml:"enabled"`

	// EnabledExpr, when set, is a Lua expression evaluated per document
	// with a `doc` table (uri, language, path, kind). A true result
	// enables suggestions for that document. Overrides Enabled.
	EnabledExpr string `toml:"enabled_expr"`

	// AutoRender promotes fresh suggestions to the rendered set as soon
	// as they arrive.
	AutoRender bool `toml:"auto_render"`

	// Debounce is how long rapid same-kind triggers coalesce before one
	// request is issued.
	Debounce Duration `toml:"debounce"`

	// TriggerEvents are editor event names that request fresh suggestions.
	TriggerEvents []string `toml:"trigger_events"`

	// ClearEvents are editor event names that drop all suggestion state.
	ClearEvents []string `toml:"clear_events"`

	// JumpHistory records the pre-jump cursor in navigation history.
	JumpHistory bool `toml:"jump_history"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Backend: BackendConfig{
			RequestTimeout: Duration(30 * time.Second),
		},
		Suggest: SuggestConfig{
			Enabled:       true,
			AutoRender:    true,
			Debounce:      Duration(75 * time.Millisecond),
			TriggerEvents: []string{"text.changed", "focus.changed"},
			ClearEvents:   []string{"mode.changed", "document.closed"},
			JumpHistory:   true,
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nextedit", "config.toml")
}

// Load reads configuration from path, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envPrefix prefixes all recognized environment variables.
const envPrefix = "NEXTEDIT_"

// applyEnv overrides cfg fields from NEXTEDIT_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookupEnv("BACKEND_COMMAND"); ok {
		cfg.Backend.Command = v
	}
	if v, ok := lookupEnv("BACKEND_ARGS"); ok {
		cfg.Backend.Args = strings.Fields(v)
	}
	if v, ok := lookupEnv("BACKEND_LANGUAGES"); ok {
		cfg.Backend.Languages = splitList(v)
	}
	if v, ok := lookupEnv("BACKEND_REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.RequestTimeout = Duration(d)
		}
	}
	if v, ok := lookupEnv("SUGGEST_ENABLED"); ok {
		cfg.Suggest.Enabled = parseBool(v, cfg.Suggest.Enabled)
	}
	if v, ok := lookupEnv("SUGGEST_ENABLED_EXPR"); ok {
		cfg.Suggest.EnabledExpr = v
	}
	if v, ok := lookupEnv("SUGGEST_AUTO_RENDER"); ok {
		cfg.Suggest.AutoRender = parseBool(v, cfg.Suggest.AutoRender)
	}
	if v, ok := lookupEnv("SUGGEST_DEBOUNCE"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Suggest.Debounce = Duration(d)
		}
	}
	if v, ok := lookupEnv("SUGGEST_TRIGGER_EVENTS"); ok {
		cfg.Suggest.TriggerEvents = splitList(v)
	}
	if v, ok := lookupEnv("SUGGEST_CLEAR_EVENTS"); ok {
		cfg.Suggest.ClearEvents = splitList(v)
	}
	if v, ok := lookupEnv("SUGGEST_JUMP_HISTORY"); ok {
		cfg.Suggest.JumpHistory = parseBool(v, cfg.Suggest.JumpHistory)
	}
}

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

// parseBool accepts the usual spellings; anything else keeps the fallback.
func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}

// splitList splits a comma-separated list, trimming whitespace.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field values that have constrained domains.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidValue, c.Log.Level)
	}

	if c.Suggest.Debounce < 0 {
		return fmt.Errorf("%w: suggest.debounce must not be negative", ErrInvalidValue)
	}
	if c.Backend.RequestTimeout < 0 {
		return fmt.Errorf("%w: backend.request_timeout must not be negative", ErrInvalidValue)
	}

	for _, trig := range c.Suggest.TriggerEvents {
		for _, clr := range c.Suggest.ClearEvents {
			if trig == clr {
				return fmt.Errorf("%w: event %q is both trigger and clear", ErrInvalidValue, trig)
			}
		}
	}

	return nil
}
