// config.go — Daemon configuration: defaults < YAML file < CLI flags.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tabscope/tabscope/internal/ledger"
	"github.com/tabscope/tabscope/internal/pagestate"
)

// DefaultPort is where the extension expects to find the daemon.
const DefaultPort = 9451

// Config holds everything tunable about the daemon.
type Config struct {
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	MaxRecords int    `yaml:"max_records"`
	MaxTabs    int    `yaml:"max_tabs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:       DefaultPort,
		MaxRecords: ledger.MaxRecords,
		MaxTabs:    pagestate.MaxTabs,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults; a named file that cannot be read or parsed is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// FromArgs builds the effective configuration from CLI arguments.
// Flags overlay the config file, which overlays the defaults.
func FromArgs(args []string) (Config, error) {
	fs := pflag.NewFlagSet("tabscope", pflag.ContinueOnError)

	cfgPath := fs.String("config", "", "path to YAML config file")
	port := fs.Int("port", DefaultPort, "port to listen on (127.0.0.1 only)")
	apiKey := fs.String("api-key", "", "shared key required in X-Tabscope-Key (optional)")
	maxRecords := fs.Int("max-records", ledger.MaxRecords, "request ledger capacity")
	maxTabs := fs.Int("max-tabs", pagestate.MaxTabs, "max tabs tracked for page-state snapshots")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := Load(*cfgPath)
	if err != nil {
		return Config{}, err
	}

	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("api-key") {
		cfg.APIKey = *apiKey
	}
	if fs.Changed("max-records") {
		cfg.MaxRecords = *maxRecords
	}
	if fs.Changed("max-tabs") {
		cfg.MaxTabs = *maxTabs
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxRecords < 1 {
		return fmt.Errorf("max_records must be positive, got %d", c.MaxRecords)
	}
	if c.MaxTabs < 1 {
		return fmt.Errorf("max_tabs must be positive, got %d", c.MaxTabs)
	}
	return nil
}
