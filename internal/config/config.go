// Package config loads daemon configuration from YAML with PHAROS_*
// environment overrides.
package config

import (
	"time"

	"github.com/pharos-net/pharos/internal/log"
)

// Config is the root daemon configuration.
type Config struct {
	// Address is the local 6-byte link address ("aa:bb:cc:dd:ee:ff").
	// Empty means derive one from the first hardware interface.
	Address string `mapstructure:"address" yaml:"address"`

	// Channel is the logical radio channel all nodes agree on out-of-band.
	Channel int `mapstructure:"channel" yaml:"channel"`

	// UDPPort carries the development transport standing in for the radio.
	UDPPort int `mapstructure:"udp_port" yaml:"udp_port"`

	// DataDir holds the persisted peer database.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Node   Node       `mapstructure:"node" yaml:"node"`
	Reaper Reaper     `mapstructure:"reaper" yaml:"reaper"`
	Log    log.Config `mapstructure:"log" yaml:"log"`
}

// Node tunes the protocol engine.
type Node struct {
	QueueDepth        int           `mapstructure:"queue_depth" yaml:"queue_depth"`
	SendTimeout       time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" yaml:"discovery_interval"`
	PeerSoftLimit     int           `mapstructure:"peer_soft_limit" yaml:"peer_soft_limit"`
}

// Reaper tunes the stale-peer eviction loop. Eviction policy lives outside
// the protocol core; the table itself never expires entries.
type Reaper struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	PeerTimeout time.Duration `mapstructure:"peer_timeout" yaml:"peer_timeout"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Channel: 36,
		UDPPort: 9477,
		DataDir: ".",
		Node: Node{
			QueueDepth:        20,
			SendTimeout:       time.Second,
			DiscoveryInterval: time.Second,
			PeerSoftLimit:     20,
		},
		Reaper: Reaper{
			Interval:    30 * time.Second,
			PeerTimeout: 60 * time.Second,
		},
		Log: log.Config{Level: "info", Format: "text"},
	}
}
