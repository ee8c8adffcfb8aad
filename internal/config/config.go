// Package config loads agent settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces the override variables, like CCBR_POST_URL.
const envPrefix = "ccbr"

// Config is the full agent configuration. Timeouts are plain seconds so
// the YAML stays readable.
type Config struct {
	// PostURL is the collection endpoint. Empty means offline mode.
	PostURL string `yaml:"post_url" envconfig:"POST_URL"`
	// Hostname overrides the reported host identity.
	Hostname string `yaml:"hostname" envconfig:"HOSTNAME"`
	// EnabledChecks selects which reports "run all" collects.
	EnabledChecks []string `yaml:"enabled_checks" envconfig:"ENABLED_CHECKS"`
	LogLevel      string   `yaml:"log_level" envconfig:"LOG_LEVEL"`

	RAID  RAIDConfig  `yaml:"raid"`
	NFS   NFSConfig   `yaml:"nfs"`
	Smart SmartConfig `yaml:"smart"`
}

type RAIDConfig struct {
	// Manager pins a specific parser instead of autodetection.
	Manager          string `yaml:"manager" envconfig:"RAID_MANAGER"`
	ProbeTimeout     int    `yaml:"probe_timeout" envconfig:"RAID_PROBE_TIMEOUT"`
	ProbeConcurrency int    `yaml:"probe_concurrency" envconfig:"RAID_PROBE_CONCURRENCY"`
}

type NFSConfig struct {
	StaleTimeout int `yaml:"stale_timeout" envconfig:"NFS_STALE_TIMEOUT"`
	Concurrency  int `yaml:"concurrency" envconfig:"NFS_CONCURRENCY"`
}

type SmartConfig struct {
	// Exec points at a bundled smartctl; empty means PATH lookup.
	Exec        string `yaml:"exec" envconfig:"SMART_EXEC"`
	Timeout     int    `yaml:"timeout" envconfig:"SMART_TIMEOUT"`
	Concurrency int    `yaml:"concurrency" envconfig:"SMART_CONCURRENCY"`
}

var defaultConfig = Config{
	EnabledChecks: []string{"raid", "stale_nfs", "disk_usage", "smartctl"},
	LogLevel:      "info",
	NFS:           NFSConfig{StaleTimeout: 10},
	Smart:         SmartConfig{Timeout: 30},
}

// Load reads the configuration file, falling back through the default
// locations when path is empty, then applies environment overrides. A
// missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"/etc/ccbr/report.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/ccbr/report.yaml"),
			"report.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if len(cfg.EnabledChecks) == 0 {
		cfg.EnabledChecks = defaultConfig.EnabledChecks
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultConfig.LogLevel
	}
	return &cfg, nil
}

// ReportHostname resolves the identity reports are filed under: the
// configured override, else the OS hostname trimmed to its short form.
func (c *Config) ReportHostname() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return strings.SplitN(hostname, ".", 2)[0]
}

// CheckEnabled reports whether a named check is in the enabled set.
func (c *Config) CheckEnabled(name string) bool {
	for _, check := range c.EnabledChecks {
		if check == name {
			return true
		}
	}
	return false
}

// Seconds converts a configured whole-second value, using the fallback
// when unset.
func Seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
