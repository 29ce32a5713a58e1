// Package config loads the static peer topology and per-process options for
// a location-proxy server. The topology is fixed at process start and never
// mutated afterward.
package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// defaultTopology is the reference five-server deployment. It is used
// whenever no config file is supplied, so the process can start with zero
// configuration.
const defaultTopology = `
self: ""
listen_host: 127.0.0.1
places:
  api_key: ""
  base_url: https://maps.googleapis.com/maps/api/place/nearbysearch/json
log_file: ""
servers:
  Bailey:
    port: 10000
    peers: [Bona, Campbell]
  Bona:
    port: 10001
    peers: [Bailey, Clark, Campbell]
  Campbell:
    port: 10002
    peers: [Bailey, Bona, Jaquez]
  Clark:
    port: 10003
    peers: [Bona, Jaquez]
  Jaquez:
    port: 10004
    peers: [Clark, Campbell]
`

// ServerEntry describes one server's listen port and direct neighbors.
type ServerEntry struct {
	Port  int      `mapstructure:"port"`
	Peers []string `mapstructure:"peers"`
}

// PlacesConfig configures the outbound Places API adapter.
type PlacesConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Config is the single configuration structure for a server process: the
// peer topology and port table, plus the ambient options the core needs to
// run (this server's identity, where to log, how to reach Places).
type Config struct {
	Self       string                 `mapstructure:"self"`
	ListenHost string                 `mapstructure:"listen_host"`
	LogFile    string                 `mapstructure:"log_file"`
	Places     PlacesConfig           `mapstructure:"places"`
	Servers    map[string]ServerEntry `mapstructure:"servers"`
}

// Load reads configuration from path (if non-empty), layering environment
// variable overrides (LOCATIONPROXY_*) and falling back to defaultTopology
// for anything unset. serverName overrides Self when non-empty, which is
// how the CLI's positional argument takes precedence over a config file.
func Load(path string, serverName string) (*Config, error) {
	cfg, err := LoadUnvalidated(path, serverName)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadUnvalidated behaves like Load but skips Validate, for callers (such
// as the read-only "topology" CLI command) that want to inspect the
// configured adjacency without pinning a specific server identity.
func LoadUnvalidated(path string, serverName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(defaultTopology)); err != nil {
		return nil, fmt.Errorf("loading default topology: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("LOCATIONPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("self")
	_ = v.BindEnv("places.api_key")
	_ = v.BindEnv("log_file")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if serverName != "" {
		cfg.Self = serverName
	}

	return &cfg, nil
}

// Validate ensures the configured server name exists in the topology with a
// port, and that every peer it lists exists and lists it back. Only Self's
// own adjacency entries are checked, not the rest of the table.
func (c *Config) Validate() error {
	if c.Self == "" {
		return fmt.Errorf("server name is required")
	}
	entry, ok := c.Servers[c.Self]
	if !ok {
		return fmt.Errorf("unknown server name %q", c.Self)
	}
	if entry.Port <= 0 {
		return fmt.Errorf("server %q has no configured port", c.Self)
	}
	for _, peer := range entry.Peers {
		peerEntry, ok := c.Servers[peer]
		if !ok {
			return fmt.Errorf("server %q lists unknown peer %q", c.Self, peer)
		}
		if !contains(peerEntry.Peers, c.Self) {
			return fmt.Errorf("adjacency is not symmetric: %q lists %q but not vice versa", c.Self, peer)
		}
	}
	return nil
}

// Peers returns the direct neighbors of the named server in a stable order.
func (c *Config) Peers(server string) []string {
	entry := c.Servers[server]
	out := append([]string(nil), entry.Peers...)
	sort.Strings(out)
	return out
}

// Port returns the configured listen port for the named server, or 0 if
// unknown.
func (c *Config) Port(server string) int {
	return c.Servers[server].Port
}

// Addr returns host:port for dialing the named server, using ListenHost as
// the dial target since the reference deployment runs all servers on one
// host.
func (c *Config) Addr(server string) string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.Port(server))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
