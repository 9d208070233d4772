// Package config holds the tunables of the connection engine and the CLI,
// loadable from a YAML file with sane defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Durations are expressed in
// milliseconds so the YAML stays plain integers.
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	// ConnectRSSI is the minimum signal strength at which the nearest
	// scanned device is considered close enough to connect to.
	ConnectRSSI int `yaml:"connect_rssi" default:"-52"`

	// DisconnectRSSI is the signal strength below which a live connection
	// is considered out of range and torn down.
	DisconnectRSSI int `yaml:"disconnect_rssi" default:"-80"`

	// ScanWindowMS is the length of one discovery window.
	ScanWindowMS int `yaml:"scan_window_ms" default:"2000"`

	// RSSIIntervalMS is the cadence of the connected signal monitor.
	RSSIIntervalMS int `yaml:"rssi_interval_ms" default:"3000"`

	// AutoScanDelayMS is the pause between proximity-search windows when
	// no device qualified.
	AutoScanDelayMS int `yaml:"auto_scan_delay_ms" default:"0"`

	// ConnectTimeoutMS bounds dialing plus register resolution.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms" default:"30000"`

	// DefaultSpeed is the motion speed used when none is given.
	DefaultSpeed float64 `yaml:"default_speed" default:"0.89"`

	// AutoFind keeps rescanning until a device qualifies for connection.
	AutoFind bool `yaml:"auto_find" default:"false"`

	// AutoDisconnect tears the connection down when the signal drops
	// below DisconnectRSSI.
	AutoDisconnect bool `yaml:"auto_disconnect" default:"false"`

	// NamePrefixes restricts discovery to devices whose advertised name
	// starts with one of these prefixes, case-insensitively.
	NamePrefixes []string `yaml:"name_prefixes"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	// Slice defaults do not round-trip through struct tags.
	cfg.NamePrefixes = []string{"kubi", "Rev-"}
	return cfg
}

// Load reads a YAML configuration file over the defaults. Fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ScanWindow returns the discovery window length.
func (c *Config) ScanWindow() time.Duration {
	return time.Duration(c.ScanWindowMS) * time.Millisecond
}

// RSSIInterval returns the connected signal monitor cadence.
func (c *Config) RSSIInterval() time.Duration {
	return time.Duration(c.RSSIIntervalMS) * time.Millisecond
}

// AutoScanDelay returns the pause between proximity-search windows.
func (c *Config) AutoScanDelay() time.Duration {
	return time.Duration(c.AutoScanDelayMS) * time.Millisecond
}

// ConnectTimeout returns the dial deadline.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
