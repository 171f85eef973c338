// Package config manages linkwatch daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete linkwatch configuration.
type Config struct {
	API      APIConfig      `koanf:"api"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Topology TopologyConfig `koanf:"topology"`
	LLDP     LLDPConfig     `koanf:"lldp"`
	Liveness LivenessConfig `koanf:"liveness"`
	Loop     LoopConfig     `koanf:"loop"`
}

// APIConfig holds the REST server configuration.
type APIConfig struct {
	// Addr is the REST listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// StoreConfig holds the enablement-store configuration.
type StoreConfig struct {
	// Path is the SQLite database file path.
	Path string `koanf:"path"`
}

// TopologyConfig holds the topology controller client configuration.
type TopologyConfig struct {
	// URL is the controller base URL used by the loop mitigation
	// actions (e.g., "http://localhost:8181").
	URL string `koanf:"url"`
}

// LLDPConfig holds the discovery cadence configuration.
type LLDPConfig struct {
	// PollingTime is the hello/reaper period. It is also the base for
	// the derived liveness and loop staleness intervals and can be
	// changed at runtime through the REST API.
	PollingTime time.Duration `koanf:"polling_time"`
}

// LivenessConfig holds the per-link liveness engine parameters.
type LivenessConfig struct {
	// MinHellos is the number of hellos a side must receive before it
	// is declared up (must be >= 1).
	MinHellos int `koanf:"min_hellos"`

	// DeadMultiplier scales the polling time into the reaper dead
	// interval: a side with no hello for polling_time * dead_multiplier
	// is declared down.
	DeadMultiplier int `koanf:"dead_multiplier"`
}

// LoopConfig holds the loop detection and mitigation parameters.
type LoopConfig struct {
	// Actions is the set of mitigation actions, a subset of
	// {"log", "disable"}.
	Actions []string `koanf:"actions"`

	// DeadMultiplier scales the polling time into the loop staleness
	// interval: a loop with no fresh observation for
	// polling_time * dead_multiplier is considered stopped.
	DeadMultiplier int `koanf:"dead_multiplier"`

	// LogEvery debounces the log action to one warning per LogEvery
	// occurrences of the same loop.
	LogEvery int `koanf:"log_every"`

	// Ignored seeds the per-dpid ignore list as port-number pairs,
	// e.g. {"00:..:01": [[1, 2]]}. Switch metadata can replace entries
	// at runtime.
	Ignored map[string][][]int `koanf:"ignored"`
}

// LivenessDeadInterval derives the reaper dead interval.
func (c *Config) LivenessDeadInterval() time.Duration {
	return c.LLDP.PollingTime * time.Duration(c.Liveness.DeadMultiplier)
}

// LoopStoppedInterval derives the loop staleness interval.
func (c *Config) LoopStoppedInterval() time.Duration {
	return c.LLDP.PollingTime * time.Duration(c.Loop.DeadMultiplier)
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
//
// The 3s polling time with a dead multiplier of 5 gives a 15s liveness
// timeout; the default log_every of 20 bounds a persistent loop to
// roughly one warning per minute at the default cadence.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path: "/var/lib/linkwatch/linkwatch.db",
		},
		Topology: TopologyConfig{
			URL: "http://localhost:8181",
		},
		LLDP: LLDPConfig{
			PollingTime: 3 * time.Second,
		},
		Liveness: LivenessConfig{
			MinHellos:      2,
			DeadMultiplier: 5,
		},
		Loop: LoopConfig{
			Actions:        []string{"log"},
			DeadMultiplier: 5,
			LogEvery:       20,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for linkwatch configuration.
// Variables are named LINKWATCH_<section>_<key>, e.g., LINKWATCH_API_ADDR.
const envPrefix = "LINKWATCH_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (LINKWATCH_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	LINKWATCH_API_ADDR     -> api.addr
//	LINKWATCH_METRICS_ADDR -> metrics.addr
//	LINKWATCH_METRICS_PATH -> metrics.path
//	LINKWATCH_LOG_LEVEL    -> log.level
//	LINKWATCH_LOG_FORMAT   -> log.format
//	LINKWATCH_STORE_PATH   -> store.path
//	LINKWATCH_TOPOLOGY_URL -> topology.url
//
// Keys whose names contain underscores (polling_time, min_hellos, ...)
// are file-only. Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// LINKWATCH_API_ADDR -> api.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms LINKWATCH_API_ADDR -> api.addr.
// Strips the LINKWATCH_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"api.addr":                 defaults.API.Addr,
		"metrics.addr":             defaults.Metrics.Addr,
		"metrics.path":             defaults.Metrics.Path,
		"log.level":                defaults.Log.Level,
		"log.format":               defaults.Log.Format,
		"store.path":               defaults.Store.Path,
		"topology.url":             defaults.Topology.URL,
		"lldp.polling_time":        defaults.LLDP.PollingTime.String(),
		"liveness.min_hellos":      defaults.Liveness.MinHellos,
		"liveness.dead_multiplier": defaults.Liveness.DeadMultiplier,
		"loop.actions":             defaults.Loop.Actions,
		"loop.dead_multiplier":     defaults.Loop.DeadMultiplier,
		"loop.log_every":           defaults.Loop.LogEvery,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAPIAddr indicates the REST listen address is empty.
	ErrEmptyAPIAddr = errors.New("api.addr must not be empty")

	// ErrEmptyStorePath indicates the enablement-store path is empty.
	ErrEmptyStorePath = errors.New("store.path must not be empty")

	// ErrEmptyTopologyURL indicates the controller base URL is empty.
	ErrEmptyTopologyURL = errors.New("topology.url must not be empty")

	// ErrInvalidPollingTime indicates the polling period is not positive.
	ErrInvalidPollingTime = errors.New("lldp.polling_time must be > 0")

	// ErrInvalidMinHellos indicates the hello debounce threshold is below 1.
	ErrInvalidMinHellos = errors.New("liveness.min_hellos must be >= 1")

	// ErrInvalidDeadMultiplier indicates a dead multiplier is below 1.
	ErrInvalidDeadMultiplier = errors.New("dead_multiplier must be >= 1")

	// ErrInvalidLogEvery indicates the loop log debounce period is below 1.
	ErrInvalidLogEvery = errors.New("loop.log_every must be >= 1")

	// ErrInvalidLoopAction indicates an unrecognized mitigation action.
	ErrInvalidLoopAction = errors.New("loop action must be log or disable")

	// ErrInvalidIgnoredPair indicates an ignore-list entry is not a
	// two-element port pair.
	ErrInvalidIgnoredPair = errors.New("loop.ignored entries must be [port_a, port_b] pairs")
)

// ValidLoopActions lists the recognized mitigation action strings.
var ValidLoopActions = map[string]bool{
	"log":     true,
	"disable": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.API.Addr == "" {
		return ErrEmptyAPIAddr
	}

	if cfg.Store.Path == "" {
		return ErrEmptyStorePath
	}

	if cfg.Topology.URL == "" {
		return ErrEmptyTopologyURL
	}

	if cfg.LLDP.PollingTime <= 0 {
		return ErrInvalidPollingTime
	}

	if cfg.Liveness.MinHellos < 1 {
		return ErrInvalidMinHellos
	}

	if cfg.Liveness.DeadMultiplier < 1 {
		return fmt.Errorf("liveness: %w", ErrInvalidDeadMultiplier)
	}

	if cfg.Loop.DeadMultiplier < 1 {
		return fmt.Errorf("loop: %w", ErrInvalidDeadMultiplier)
	}

	if cfg.Loop.LogEvery < 1 {
		return ErrInvalidLogEvery
	}

	for i, action := range cfg.Loop.Actions {
		if !ValidLoopActions[action] {
			return fmt.Errorf("loop.actions[%d] %q: %w", i, action, ErrInvalidLoopAction)
		}
	}

	for dpid, pairs := range cfg.Loop.Ignored {
		for i, pair := range pairs {
			if len(pair) != 2 {
				return fmt.Errorf("loop.ignored[%s][%d]: %w", dpid, i, ErrInvalidIgnoredPair)
			}
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
