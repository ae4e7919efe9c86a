// Package config loads msgtrack.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"msgtrack/pkg/classify"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "msgtrack.toml"

// Environment variables overriding file values:
//   - MSGTRACK_CONFIG: config file path (read by ResolvePath)
//   - MSGTRACK_LEDGER: ledger CSV path
//   - MSGTRACK_INDEX: sqlite index path
//   - MSGTRACK_LOG_DIR: log directory ("" disables the log file)
//   - MSGTRACK_LOG_LEVEL: debug | info | warn | error
const (
	EnvConfig   = "MSGTRACK_CONFIG"
	EnvLedger   = "MSGTRACK_LEDGER"
	EnvIndex    = "MSGTRACK_INDEX"
	EnvLogDir   = "MSGTRACK_LOG_DIR"
	EnvLogLevel = "MSGTRACK_LOG_LEVEL"
)

// Config is the msgtrack.toml structure.
type Config struct {
	Child      ChildConfig      `toml:"child"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Classifier ClassifierConfig `toml:"classifier"`
	Log        LogConfig        `toml:"log"`
}

// ChildConfig describes the observed process. The correlation id is appended
// after Args.
type ChildConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Dir     string   `toml:"dir"`
}

// LedgerConfig locates the ledger and its sqlite index.
type LedgerConfig struct {
	Path  string `toml:"path"`
	Index string `toml:"index"`
}

// ClassifierConfig selects the marker set.
type ClassifierConfig struct {
	Preset      string `toml:"preset"`
	MarkersFile string `toml:"markers_file"`
}

// LogConfig controls the structured log sink.
type LogConfig struct {
	Dir   string `toml:"dir"`
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Child: ChildConfig{
			Command: "node",
			Args:    []string{"run-discussion.js"},
		},
		Ledger: LedgerConfig{
			Path:  "messages.csv",
			Index: "messages.db",
		},
		Classifier: ClassifierConfig{Preset: "default"},
		Log: LogConfig{
			Dir:   "logs",
			Level: "debug",
		},
	}
}

// ResolvePath returns flagPath if set, then MSGTRACK_CONFIG, then DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if v := os.Getenv(EnvConfig); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads path over the defaults and applies environment overrides.
// A missing file yields the defaults. Relative paths inside the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.resolveRelative(filepath.Dir(path))
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MSGTRACK_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLedger); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(EnvIndex); v != "" {
		c.Ledger.Index = v
	}
	if v, ok := os.LookupEnv(EnvLogDir); ok {
		c.Log.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the fields a run cannot do without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Child.Command) == "" {
		return errors.New("child.command is required")
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger.path is required")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := classify.Preset(c.Classifier.Preset); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Markers returns the preset with the optional markers file applied.
func (c *Config) Markers() (classify.Markers, error) {
	m, err := classify.Preset(c.Classifier.Preset)
	if err != nil {
		return classify.Markers{}, err
	}
	if c.Classifier.MarkersFile == "" {
		return m, nil
	}
	return classify.LoadMarkers(c.Classifier.MarkersFile, m)
}

// ChildArgs returns the child's argument list for a run.
func (c *Config) ChildArgs(correlationID string) []string {
	args := make([]string, 0, len(c.Child.Args)+1)
	args = append(args, c.Child.Args...)
	return append(args, correlationID)
}

// WriteDefault writes the default config to path unless a file exists there.
// It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config %s: %w", path, err)
	}
	return true, nil
}

// resolveRelative anchors relative file paths at base.
func (c *Config) resolveRelative(base string) {
	for _, p := range []*string{&c.Ledger.Path, &c.Ledger.Index, &c.Classifier.MarkersFile, &c.Log.Dir, &c.Child.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
