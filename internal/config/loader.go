package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the config file at path and applies environment overrides.
// An empty path returns the defaults (env overrides still apply).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHAROS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		dir := filepath.Dir(path)
		name := filepath.Base(path)
		ext := filepath.Ext(name)
		v.SetConfigName(strings.TrimSuffix(name, ext))
		v.SetConfigType(strings.TrimPrefix(ext, "."))
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Channel == 0 {
		cfg.Channel = def.Channel
	}
	if cfg.UDPPort == 0 {
		cfg.UDPPort = def.UDPPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Node.QueueDepth == 0 {
		cfg.Node.QueueDepth = def.Node.QueueDepth
	}
	if cfg.Node.SendTimeout == 0 {
		cfg.Node.SendTimeout = def.Node.SendTimeout
	}
	if cfg.Node.DiscoveryInterval == 0 {
		cfg.Node.DiscoveryInterval = def.Node.DiscoveryInterval
	}
	if cfg.Node.PeerSoftLimit == 0 {
		cfg.Node.PeerSoftLimit = def.Node.PeerSoftLimit
	}
	if cfg.Reaper.Interval == 0 {
		cfg.Reaper.Interval = def.Reaper.Interval
	}
	if cfg.Reaper.PeerTimeout == 0 {
		cfg.Reaper.PeerTimeout = def.Reaper.PeerTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
