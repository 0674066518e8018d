// Package daemon manages the peernet daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tutu-network/peernet/internal/infra/p2p"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Pool      PoolConfig      `toml:"pool"`
	Seeds     SeedsConfig     `toml:"seeds"`
	API       APIConfig       `toml:"api"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies this node and its listen endpoint.
type NodeConfig struct {
	ID   string `toml:"id"`
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PoolConfig controls peer pool capacities and timers.
type PoolConfig struct {
	MaxInbound     int    `toml:"max_inbound"`
	MaxOutbound    int    `toml:"max_outbound"`
	RefillInterval string `toml:"refill_interval"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// SeedsConfig lists bootstrap addresses.
type SeedsConfig struct {
	Addrs          []string `toml:"addrs"`
	UseAddressBook bool     `toml:"use_address_book"`
}

// APIConfig controls the HTTP status API.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TelemetryConfig controls the Prometheus endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Host: p2p.DefaultHost,
			Port: p2p.DefaultPort,
		},
		Pool: PoolConfig{
			MaxInbound:     p2p.DefaultMaxInbound,
			MaxOutbound:    p2p.DefaultMaxOutbound,
			RefillInterval: p2p.DefaultRefillInterval.String(),
			ConnectTimeout: p2p.DefaultConnectTimeout.String(),
		},
		Seeds: SeedsConfig{
			Addrs: append([]string(nil), p2p.DefaultSeeds...),
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 65480,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects values the pools cannot run with.
func (c Config) Validate() error {
	if c.Node.Port <= 0 || c.Node.Port >= 0xffff {
		return fmt.Errorf("node.port %d out of range", c.Node.Port)
	}
	if c.Node.Host == "" {
		return fmt.Errorf("node.host is empty")
	}
	if c.Pool.MaxInbound < 0 || c.Pool.MaxOutbound < 0 {
		return fmt.Errorf("pool capacities must not be negative")
	}
	if c.API.Port < 0 || c.API.Port >= 0xffff {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	for _, field := range []struct{ name, value string }{
		{"pool.refill_interval", c.Pool.RefillInterval},
		{"pool.connect_timeout", c.Pool.ConnectTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

// PoolSettings converts the config into a p2p.PoolConfig. Transport, clock,
// logger and hooks are left for the caller.
func (c Config) PoolSettings() p2p.PoolConfig {
	return p2p.PoolConfig{
		Host:           c.Node.Host,
		Port:           c.Node.Port,
		MaxInbound:     c.Pool.MaxInbound,
		MaxOutbound:    c.Pool.MaxOutbound,
		RefillInterval: parseDuration(c.Pool.RefillInterval, p2p.DefaultRefillInterval),
		ConnectTimeout: parseDuration(c.Pool.ConnectTimeout, p2p.DefaultConnectTimeout),
		Seeds:          append([]string(nil), c.Seeds.Addrs...),
	}
}

// LoadConfig reads config from ~/.peernet/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(peernetHome(), "config.toml"))
}

// LoadConfigFile reads config from path, falling back to defaults when the
// file does not exist.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.peernet/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(peernetHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// peernetHome returns the peernet data directory.
func peernetHome() string {
	if env := os.Getenv("PEERNET_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".peernet")
}

// Home is exported for use by other packages.
func Home() string {
	return peernetHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
