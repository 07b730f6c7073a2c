package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 4*time.Second, cfg.ArtNet.StalenessWindow.Duration)
}

func TestNewConfigOverrides(t *testing.T) {
	cfg, err := NewConfig(writeFile(t, `
[logger]
log-level = "debug"

[artnet]
bind-ip = "10.0.0.5"
staleness-window = "2s"
tick-interval = "50ms"
sequence = true

[node]
short-name = "rack-a"
oem = 4660

[mqtt]
enabled = true
server = "broker.local"
qos = 1
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "10.0.0.5", cfg.ArtNet.BindIP)
	assert.Equal(t, 2*time.Second, cfg.ArtNet.StalenessWindow.Duration)
	assert.Equal(t, 50*time.Millisecond, cfg.ArtNet.TickInterval.Duration)
	assert.True(t, cfg.ArtNet.Sequence)
	assert.Equal(t, 6454, cfg.ArtNet.Port, "unset keys keep defaults")
	assert.Equal(t, "rack-a", cfg.Node.ShortName)
	assert.Equal(t, 0x1234, cfg.Node.OEM)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.Qos)
}

func TestNewConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "[artnet]\nstaleness-window = \"soon\"\n"},
		{"zero window", "[artnet]\nstaleness-window = \"0s\"\n"},
		{"port", "[artnet]\nport = 70000\n"},
		{"broadcast", "[artnet]\nbroadcast = \"::1\"\n"},
		{"oem", "[node]\noem = 70000\n"},
		{"qos", "[mqtt]\nqos = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
