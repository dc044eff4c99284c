package config

import (
	"strings"
	"time"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/protocol"
)

// Default values used when neither the file nor the environment sets them.
const (
	DefaultTransportKind = "udp"
	DefaultListen        = ":17221"
	DefaultGroup         = "239.255.17.22:17221"
	DefaultMetricsAddr   = ":9722"
)

// GetDefaultConfig returns a configuration with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Commands: CommandsConfig{Expiry: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTransportDefaults(&cfg.Transport)
	applyCommandsDefaults(&cfg.Commands)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Level == "WARNING" {
		cfg.Level = "WARN"
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Kind == "" {
		cfg.Kind = DefaultTransportKind
	}
	cfg.Kind = strings.ToLower(cfg.Kind)

	if cfg.Kind == "udp" {
		if cfg.Listen == "" {
			cfg.Listen = DefaultListen
		}
		if cfg.Group == "" {
			cfg.Group = DefaultGroup
		}
	}
}

func applyCommandsDefaults(cfg *CommandsConfig) {
	if cfg.Order == "" {
		cfg.Order = avdecc.RegisterBeforeSend.String()
	}
	if cfg.AemTimeout == 0 {
		cfg.AemTimeout = protocol.AecpCommandTimeout
	}
	if cfg.MvuTimeout == 0 {
		cfg.MvuTimeout = protocol.AecpCommandTimeout
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 50 * time.Millisecond
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Address == "" {
		cfg.Address = DefaultMetricsAddr
	}
}
