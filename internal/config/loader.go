package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".postfetch"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .postfetch configuration file.
// Zero values mean "not set" and leave the corresponding Config field alone.
type File struct {
	APIBase           string            `yaml:"api_base,omitempty"`
	SiteURL           string            `yaml:"site_url,omitempty"`
	ExtraOrigins      []string          `yaml:"extra_origins,omitempty"`
	APIPrefix         string            `yaml:"api_prefix,omitempty"`
	Timeout           time.Duration     `yaml:"timeout,omitempty"`
	MaxInFlight       int               `yaml:"max_in_flight,omitempty"`
	FanoutTimeout     time.Duration     `yaml:"fanout_timeout,omitempty"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	MaxBodySize       int64             `yaml:"max_body_size,omitempty"`
	UserAgent         string            `yaml:"user_agent,omitempty"`
	Proxy             string            `yaml:"proxy,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	PollInterval      time.Duration     `yaml:"poll_interval,omitempty"`
	Cache             CacheFile         `yaml:"cache,omitempty"`
}

// CacheFile is the "cache" section of the configuration file.
type CacheFile struct {
	Backend    string        `yaml:"backend,omitempty"`
	Dir        string        `yaml:"dir,omitempty"`
	MaxEntries int           `yaml:"max_entries,omitempty"`
	MaxAge     time.Duration `yaml:"max_age,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Apply overlays the non-zero settings of the file onto cfg.
// Headers are merged, with file values replacing same-named defaults.
func (cf *File) Apply(cfg *Config) {
	setString(&cfg.APIBase, cf.APIBase)
	setString(&cfg.SiteURL, cf.SiteURL)
	if len(cf.ExtraOrigins) > 0 {
		cfg.ExtraOrigins = append([]string(nil), cf.ExtraOrigins...)
	}
	setString(&cfg.APIPrefix, cf.APIPrefix)
	setDuration(&cfg.Timeout, cf.Timeout)
	if cf.MaxInFlight != 0 {
		cfg.MaxInFlight = cf.MaxInFlight
	}
	setDuration(&cfg.FanoutTimeout, cf.FanoutTimeout)
	if cf.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = cf.RequestsPerSecond
	}
	if cf.MaxBodySize != 0 {
		cfg.MaxBodySize = cf.MaxBodySize
	}
	setString(&cfg.UserAgent, cf.UserAgent)
	setString(&cfg.ProxyAddress, cf.Proxy)
	if len(cf.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(cf.Headers))
		}
		for k, v := range cf.Headers {
			cfg.Headers[k] = v
		}
	}
	setDuration(&cfg.PollInterval, cf.PollInterval)

	setString(&cfg.CacheBackend, cf.Cache.Backend)
	setString(&cfg.CacheDir, cf.Cache.Dir)
	if cf.Cache.MaxEntries != 0 {
		cfg.CacheMaxEntries = cf.Cache.MaxEntries
	}
	setDuration(&cfg.CacheMaxAge, cf.Cache.MaxAge)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .postfetch in the current directory
// 3. Look for .postfetch in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
