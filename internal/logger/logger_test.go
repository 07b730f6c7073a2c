package logger

import (
	"testing"

	"artnetctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(config.LogConf{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", log.GetLevel())

	log, err = NewLogger(config.LogConf{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, "warning", log.GetLevel())
}

func TestNewLoggerErrors(t *testing.T) {
	_, err := NewLogger(config.LogConf{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(config.LogConf{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestWithKeepsFields(t *testing.T) {
	log := Discard().With(Fields{"module": "art-net"})
	assert.Equal(t, "art-net", log.Data["module"])
	assert.Equal(t, "panic", log.GetLevel())
}
