// Package config implements loom.Config loading as YAML with optional
// frontmatter and ${VAR} environment substitution, grounded on the
// teacher's config/yaml_loader.go mechanics and generalized to the
// kernel's Config shape (HTTP bind address, scan root, event bus
// tuning, CORS/health toggles) in place of the teacher's
// Framework/Router/Server/TLS tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/pkg/loom"
)

// yamlConfig mirrors loom.Config with yaml tags; it is unmarshaled
// directly, then copied field-by-field so loom.Config itself stays
// free of serialization tags. The two toggles are pointers so that a
// key left out of the file keeps its default (on) instead of reading
// as false.
type yamlConfig struct {
	HTTPHost             string `yaml:"http_host"`
	HTTPPort             int    `yaml:"http_port"`
	ScanRoot             string `yaml:"scan_root"`
	EventWorkers         int    `yaml:"event_workers"`
	EventQueueCapacity   int    `yaml:"event_queue_capacity"`
	EventDrainDeadlineMs int    `yaml:"event_drain_deadline_ms"`
	CORSEnabled          *bool  `yaml:"cors_enabled"`
	HealthEndpoint       *bool  `yaml:"health_endpoint"`
	Mode                 string `yaml:"mode"`
	LogLevel             string `yaml:"log_level"`
}

func (c yamlConfig) toConfig() loom.Config {
	return loom.Config{
		HTTPHost:             c.HTTPHost,
		HTTPPort:             c.HTTPPort,
		ScanRoot:             c.ScanRoot,
		EventWorkers:         c.EventWorkers,
		EventQueueCapacity:   c.EventQueueCapacity,
		EventDrainDeadlineMs: c.EventDrainDeadlineMs,
		CORSEnabled:          c.CORSEnabled == nil || *c.CORSEnabled,
		HealthEndpoint:       c.HealthEndpoint == nil || *c.HealthEndpoint,
		Mode:                 c.Mode,
		LogLevel:             c.LogLevel,
	}
}

// Loader implements YAML-with-frontmatter loading of loom.Config.
type Loader struct{}

// NewYAMLLoader creates a new YAML configuration loader.
func NewYAMLLoader() *Loader { return &Loader{} }

// Load parses configuration from a file, trying frontmatter first and
// falling back to a plain YAML document.
func (l *Loader) Load(source string) (loom.Config, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return loom.Config{}, errs.ConfigError("failed to read config file", err)
	}

	var yc yamlConfig
	var meta map[string]any
	rest, err := frontmatter.Parse(strings.NewReader(string(data)), &meta)
	if err == nil && len(meta) > 0 {
		if err := yaml.Unmarshal(rest, &yc); err != nil {
			return loom.Config{}, errs.ConfigError("failed to parse YAML body", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &yc); err != nil {
			return loom.Config{}, errs.ConfigError("failed to parse YAML", err)
		}
	}

	cfg := yc.toConfig()
	substituteEnv(&cfg)
	return cfg, nil
}

// Validate checks that cfg's fields are within acceptable ranges.
func (l *Loader) Validate(cfg loom.Config) error {
	if cfg.Mode != "" && cfg.Mode != "development" && cfg.Mode != "production" {
		return errs.ConfigError(fmt.Sprintf("invalid mode: %s", cfg.Mode), nil)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return errs.ConfigError(fmt.Sprintf("invalid http port: %d", cfg.HTTPPort), nil)
	}
	if cfg.EventWorkers < 0 {
		return errs.ConfigError("event_workers must be >= 0", nil)
	}
	return nil
}

// substituteEnv expands ${VAR} patterns in string fields via os.ExpandEnv.
func substituteEnv(cfg *loom.Config) {
	cfg.HTTPHost = os.ExpandEnv(cfg.HTTPHost)
	cfg.ScanRoot = os.ExpandEnv(cfg.ScanRoot)
	cfg.Mode = os.ExpandEnv(cfg.Mode)
	cfg.LogLevel = os.ExpandEnv(cfg.LogLevel)
}

// LoadDefaults returns a Config with sensible defaults (spec §6).
func LoadDefaults() loom.Config {
	return loom.Config{
		HTTPHost:             "0.0.0.0",
		HTTPPort:             8080,
		ScanRoot:             ".",
		EventWorkers:         10,
		EventQueueCapacity:   1024,
		EventDrainDeadlineMs: 5000,
		CORSEnabled:          true,
		HealthEndpoint:       true,
		Mode:                 "development",
		LogLevel:             "info",
	}
}

// LoadOrDefault loads configuration from path, merging it over
// LoadDefaults, or returns the defaults untouched if path does not exist.
func LoadOrDefault(path string) (loom.Config, error) {
	defaults := LoadDefaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaults, nil
	}

	loader := NewYAMLLoader()
	cfg, err := loader.Load(path)
	if err != nil {
		return loom.Config{}, err
	}

	mergeConfig(&defaults, cfg)
	return defaults, nil
}

// mergeConfig overlays non-zero-value fields from src onto dst. The
// CORSEnabled and HealthEndpoint toggles are always copied: Load already
// reports them as on when the file leaves them out.
func mergeConfig(dst *loom.Config, src loom.Config) {
	if src.HTTPHost != "" {
		dst.HTTPHost = src.HTTPHost
	}
	if src.HTTPPort != 0 {
		dst.HTTPPort = src.HTTPPort
	}
	if src.ScanRoot != "" {
		dst.ScanRoot = src.ScanRoot
	}
	if src.EventWorkers != 0 {
		dst.EventWorkers = src.EventWorkers
	}
	if src.EventQueueCapacity != 0 {
		dst.EventQueueCapacity = src.EventQueueCapacity
	}
	if src.EventDrainDeadlineMs != 0 {
		dst.EventDrainDeadlineMs = src.EventDrainDeadlineMs
	}
	dst.CORSEnabled = src.CORSEnabled
	dst.HealthEndpoint = src.HealthEndpoint
	if src.Mode != "" {
		dst.Mode = src.Mode
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
}

// FindConfig searches the current directory and its parents for a
// loom configuration file.
func FindConfig() (string, error) {
	names := []string{"loom.yaml", "loom.yml", ".loom.yaml", ".loom.yml"}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errs.ConfigError("no config file found", nil)
}
