// Package config loads avdeccctl settings from a file, the environment and
// defaults, and turns them into protocol interface options.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/spf13/viper"
)

// Config represents the avdeccctl configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (AVDECC_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transport TransportConfig `mapstructure:"transport"`
	Entity    EntityConfig    `mapstructure:"entity"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// TransportConfig selects and configures the link PDUs travel over.
type TransportConfig struct {
	// Kind is udp, raw (Linux AF_PACKET) or sim.
	Kind string `mapstructure:"kind" validate:"required,oneof=udp raw sim"`

	// Interface is the network interface used by the raw transport.
	Interface string `mapstructure:"interface" validate:"required_if=Kind raw"`

	// Listen is the UDP address to bind.
	Listen string `mapstructure:"listen" validate:"required_if=Kind udp"`

	// Group is the UDP address multicast frames are sent to.
	Group string `mapstructure:"group"`

	// MAC is the source address written into UDP and simulated frames.
	MAC string `mapstructure:"mac" validate:"omitempty,mac"`
}

// EntityConfig identifies the local entity.
type EntityConfig struct {
	ID protocol.UniqueIdentifier `mapstructure:"id"`
}

// CommandsConfig tunes command correlation.
type CommandsConfig struct {
	// Order is register-before-send or send-before-register.
	Order string `mapstructure:"order" validate:"required,oneof=register-before-send send-before-register"`

	// Expiry enables command timeouts.
	Expiry bool `mapstructure:"expiry"`

	// AcmpTimeout overrides the per message type ACMP timeouts when set.
	AcmpTimeout time.Duration `mapstructure:"acmp_timeout" validate:"gte=0"`

	AemTimeout    time.Duration `mapstructure:"aem_timeout" validate:"gt=0"`
	MvuTimeout    time.Duration `mapstructure:"mvu_timeout" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// Load reads configuration from configPath, or from avdecc.yaml in the
// working directory when configPath is empty. A missing file is not an
// error; defaults and environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// ToOptions converts the command settings to protocol interface options.
func (c *Config) ToOptions() *avdecc.Options {
	opts := avdecc.NewOptions()
	opts.EntityID = c.Entity.ID
	opts.ExpiryEnabled = c.Commands.Expiry
	opts.AcmpTimeout = c.Commands.AcmpTimeout
	opts.AemTimeout = c.Commands.AemTimeout
	opts.MvuTimeout = c.Commands.MvuTimeout
	opts.SweepInterval = c.Commands.SweepInterval
	if c.Commands.Order == avdecc.SendBeforeRegister.String() {
		opts.Order = avdecc.SendBeforeRegister
	}
	return opts
}

// setupViper configures environment variable and config file lookup.
// Environment variables use the AVDECC_ prefix, for example
// AVDECC_TRANSPORT_KIND=raw.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("AVDECC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Zero is a meaningful value for booleans, so their defaults live here.
	v.SetDefault("commands.expiry", true)

	// AutomaticEnv only applies to keys viper already knows about.
	bindKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("avdecc")
	v.SetConfigType("yaml")
}

func bindKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if field.Type.Kind() == reflect.Struct {
			bindKeys(v, field.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDecodeHooks parses durations and entity IDs from strings.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		uniqueIdentifierDecodeHook(),
	)
}

func uniqueIdentifierDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(protocol.UniqueIdentifier(0)) || from.Kind() != reflect.String {
			return data, nil
		}
		return protocol.ParseUniqueIdentifier(data.(string))
	}
}
