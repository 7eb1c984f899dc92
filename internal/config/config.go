package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-workspace configuration file.
const FileName = ".varweave.yaml"

// StateDir holds logs and the run ledger inside a workspace.
const StateDir = ".varweave"

// Config holds all varweave configuration.
type Config struct {
	// Marker attribute names
	Markers MarkersConfig `yaml:"markers"`

	// Strong-name signing of the rewritten module
	Signing SigningConfig `yaml:"signing"`

	// Run history
	Ledger LedgerConfig `yaml:"ledger"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// MarkersConfig names the attribute types that request variance.
// Empty values fall back to CovariantOutAttribute / ContravariantInAttribute.
type MarkersConfig struct {
	Covariant     string `yaml:"covariant"`
	Contravariant string `yaml:"contravariant"`
}

// SigningConfig configures re-signing after a rewrite.
type SigningConfig struct {
	Enabled bool `yaml:"enabled"`
	// KeyFile takes precedence over the module's AssemblyKeyFileAttribute.
	KeyFile string `yaml:"key_file"`
	// IntermediateDir resolves relative AssemblyKeyFileAttribute paths.
	IntermediateDir string `yaml:"intermediate_dir"`
}

// LedgerConfig configures the sqlite run ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Signing: SigningConfig{
			Enabled:         false,
			IntermediateDir: "obj",
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    filepath.Join(StateDir, "ledger.db"),
		},
		Watch: WatchConfig{
			Debounce: "300ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("VARWEAVE_COVARIANT_NAME"); name != "" {
		c.Markers.Covariant = name
	}
	if name := os.Getenv("VARWEAVE_CONTRAVARIANT_NAME"); name != "" {
		c.Markers.Contravariant = name
	}

	if path := os.Getenv("VARWEAVE_KEY_FILE"); path != "" {
		c.Signing.KeyFile = path
		c.Signing.Enabled = true
	}
	if v := os.Getenv("VARWEAVE_SIGN"); v != "" {
		c.Signing.Enabled = parseBool(v)
	}

	if path := os.Getenv("VARWEAVE_LEDGER"); path != "" {
		if strings.EqualFold(path, "off") {
			c.Ledger.Enabled = false
		} else {
			c.Ledger.Path = path
			c.Ledger.Enabled = true
		}
	}

	if level := os.Getenv("VARWEAVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// LedgerPath resolves the ledger path against the workspace.
func (c *Config) LedgerPath(workspace string) string {
	if filepath.IsAbs(c.Ledger.Path) || workspace == "" {
		return c.Ledger.Path
	}
	return filepath.Join(workspace, c.Ledger.Path)
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevel := false
	for _, l := range ValidLevels {
		if strings.EqualFold(c.Logging.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("invalid watch debounce %q: %w", c.Watch.Debounce, err)
		}
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger is enabled but ledger.path is empty")
	}

	return nil
}

// FindWorkspaceRoot walks up from the working directory looking for a
// .varweave directory or config file. Falls back to the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, StateDir)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
