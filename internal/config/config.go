// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the fully-resolved configuration for a countersyncd
// process: the netlink identity read from the YAML file, plus every
// operator-facing knob, each overridable by environment variable (see
// Load). Only the control socket and PID file also have CLI flags.
type RuntimeConfig struct {
	Constants ConstantsConfig `mapstructure:"constants"`

	Report     ReportConfig     `mapstructure:"report"`
	CounterDB  CounterDBConfig  `mapstructure:"counter_db"`
	Channels   ChannelsConfig   `mapstructure:"channels"`
	Log        LogConfig        `mapstructure:"log"`
	Control    ControlConfig    `mapstructure:"control"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	SessionDB  SessionDBConfig  `mapstructure:"session_db"`
	CounterStore CounterStoreConnConfig `mapstructure:"counter_store"`
}

// ConstantsConfig mirrors `constants.high_frequency_telemetry` in the YAML
// file: identity of the kernel generic-netlink family/group this sidecar
// subscribes to. Unlike every other field, changing these at runtime
// requires a process restart (the data socket's connect protocol is keyed
// on them).
type ConstantsConfig struct {
	HighFrequencyTelemetry HFTConfig `mapstructure:"high_frequency_telemetry"`
}

// HFTConfig holds the genetlink family/group identity.
type HFTConfig struct {
	GenlFamily         string `mapstructure:"genl_family"`
	GenlMulticastGroup string `mapstructure:"genl_multicast_group"`
}

// ReportConfig controls the periodic reporter.
type ReportConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	Detailed      bool          `mapstructure:"detailed"`
	MaxEntries    uint32        `mapstructure:"max_entries"` // 0 = unlimited
}

// CounterDBConfig controls the counter store writer.
type CounterDBConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ChannelsConfig controls inter-actor channel capacities.
type ChannelsConfig struct {
	PayloadCapacity   int `mapstructure:"payload_capacity"`
	StatsCapacity     int `mapstructure:"stats_capacity"`
	CounterDBCapacity int `mapstructure:"counter_db_capacity"`
	CommandCapacity   int `mapstructure:"command_capacity"`
	TemplateCapacity  int `mapstructure:"template_capacity"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string         `mapstructure:"level"`  // trace/debug/info/warn/error
	Format string         `mapstructure:"format"` // text/json
	Time   string         `mapstructure:"time"`   // time.Format layout
	File   FileLogConfig  `mapstructure:"file"`
}

// FileLogConfig configures rotated file log output (lumberjack-backed).
type FileLogConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// ControlConfig controls the UDS operator control channel.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
	Path string `mapstructure:"path"`
}

// SessionDBConfig controls the Template Source's connection to the
// orchestrator's keyed session table.
type SessionDBConfig struct {
	Socket       string        `mapstructure:"socket"`
	DBID         int           `mapstructure:"db_id"`
	Table        string        `mapstructure:"table"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// CounterStoreConnConfig controls the Counter Store Writer's connection to
// the shared counter database.
type CounterStoreConnConfig struct {
	Socket string `mapstructure:"socket"`
	DBID   int    `mapstructure:"db_id"`
}

// configRoot is the top-level wrapper matching the YAML structure
// `countersyncd: ...`.
type configRoot struct {
	Countersyncd RuntimeConfig `mapstructure:"countersyncd"`
}

// Load loads configuration from file. Env vars use COUNTERSYNCD_ prefix
// (e.g. COUNTERSYNCD_LOG_LEVEL). A missing or unreadable file is not fatal:
// defaults apply (per §6's "defaults apply if unreadable" contract).
func Load(path string) (*RuntimeConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var readErr error
	if path != "" {
		v.SetConfigFile(path)
		readErr = v.ReadInConfig()
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg := root.Countersyncd
	if v.IsSet("constants") {
		if err := v.UnmarshalKey("constants", &cfg.Constants); err != nil {
			return nil, fmt.Errorf("unmarshal constants: %w", err)
		}
	}

	if cfg.Constants.HighFrequencyTelemetry.GenlFamily == "" {
		cfg.Constants.HighFrequencyTelemetry.GenlFamily = "sonic_stel"
	}
	if cfg.Constants.HighFrequencyTelemetry.GenlMulticastGroup == "" {
		cfg.Constants.HighFrequencyTelemetry.GenlMulticastGroup = "ipfix"
	}

	// A missing file is tolerated (defaults apply); a present-but-malformed
	// file is a startup-fatal configuration error.
	if readErr != nil {
		var pathErr *fs.PathError
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok && !errors.As(readErr, &pathErr) && path != "" {
			return nil, fmt.Errorf("read config file %s: %w", path, readErr)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("countersyncd.constants.high_frequency_telemetry.genl_family", "sonic_stel")
	v.SetDefault("countersyncd.constants.high_frequency_telemetry.genl_multicast_group", "ipfix")

	v.SetDefault("countersyncd.report.enabled", false)
	v.SetDefault("countersyncd.report.interval", "10s")
	v.SetDefault("countersyncd.report.detailed", true)
	v.SetDefault("countersyncd.report.max_entries", 20)

	v.SetDefault("countersyncd.counter_db.enabled", false)
	v.SetDefault("countersyncd.counter_db.interval", "3s")

	v.SetDefault("countersyncd.channels.payload_capacity", 1024)
	v.SetDefault("countersyncd.channels.stats_capacity", 1024)
	v.SetDefault("countersyncd.channels.counter_db_capacity", 1024)
	v.SetDefault("countersyncd.channels.command_capacity", 10)
	v.SetDefault("countersyncd.channels.template_capacity", 10)

	v.SetDefault("countersyncd.log.level", "info")
	v.SetDefault("countersyncd.log.format", "text")
	v.SetDefault("countersyncd.log.time", time.RFC3339Nano)

	v.SetDefault("countersyncd.control.socket", "/var/run/countersyncd.sock")
	v.SetDefault("countersyncd.control.pid_file", "/var/run/countersyncd.pid")

	v.SetDefault("countersyncd.metrics.addr", ":9108")
	v.SetDefault("countersyncd.metrics.path", "/metrics")

	v.SetDefault("countersyncd.session_db.socket", "/var/run/redis/redis.sock")
	v.SetDefault("countersyncd.session_db.db_id", 6)
	v.SetDefault("countersyncd.session_db.table", "HIGH_FREQUENCY_TELEMETRY_SESSION_TABLE")
	v.SetDefault("countersyncd.session_db.poll_interval", "3s")

	v.SetDefault("countersyncd.counter_store.socket", "/var/run/redis/redis.sock")
	v.SetDefault("countersyncd.counter_store.db_id", 0)
}
