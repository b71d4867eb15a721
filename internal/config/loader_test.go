package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pharos.yml")
	content := `
address: "02:00:00:00:00:01"
channel: 40
udp_port: 9500
data_dir: "/var/lib/pharos"
node:
  queue_depth: 32
  send_timeout: 500ms
  discovery_interval: 2s
  peer_soft_limit: 50
reaper:
  interval: 10s
  peer_timeout: 30s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "02:00:00:00:00:01", cfg.Address)
	assert.Equal(t, 40, cfg.Channel)
	assert.Equal(t, 9500, cfg.UDPPort)
	assert.Equal(t, 32, cfg.Node.QueueDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.Node.SendTimeout)
	assert.Equal(t, 2*time.Second, cfg.Node.DiscoveryInterval)
	assert.Equal(t, 50, cfg.Node.PeerSoftLimit)
	assert.Equal(t, 10*time.Second, cfg.Reaper.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pharos.yml")
	require.NoError(t, os.WriteFile(path, []byte("channel: 44\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 44, cfg.Channel)
	def := Default()
	assert.Equal(t, def.UDPPort, cfg.UDPPort)
	assert.Equal(t, def.Node.QueueDepth, cfg.Node.QueueDepth)
	assert.Equal(t, def.Node.SendTimeout, cfg.Node.SendTimeout)
	assert.Equal(t, def.Reaper.PeerTimeout, cfg.Reaper.PeerTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEmptyPathIsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Channel, cfg.Channel)
	assert.Equal(t, Default().Node.DiscoveryInterval, cfg.Node.DiscoveryInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
