package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:5001", cfg.ServerURL)
		assert.Equal(t, "/socket", cfg.SocketPath)
		assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
		assert.Equal(t, 3*time.Second, cfg.ReconnectDelayMax)
		assert.Equal(t, 20*time.Second, cfg.ConnectTimeout)
		assert.Equal(t, 256, cfg.QueueLimit)
		assert.Equal(t, 5*time.Second, cfg.NotificationTTL)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("RUMMY_SERVER_URL", "https://rummy.example")
		t.Setenv("RUMMY_QUEUE_LIMIT", "10")
		t.Setenv("RUMMY_RECONNECT_DELAY", "1s")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, "https://rummy.example", cfg.ServerURL)
		assert.Equal(t, 10, cfg.QueueLimit)
		assert.Equal(t, time.Second, cfg.ReconnectDelay)
	})

	t.Run("reads a .env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("RUMMY_TOKEN=from-file\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("RUMMY_TOKEN") })

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Token)
	})

	t.Run("rejects an inverted backoff", func(t *testing.T) {
		t.Setenv("RUMMY_RECONNECT_DELAY", "5s")
		t.Setenv("RUMMY_RECONNECT_DELAY_MAX", "1s")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})
}

func TestLogger(t *testing.T) {
	log, err := Config{LogLevel: "debug"}.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = Config{LogLevel: "WARN"}.Logger()
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = Config{LogLevel: "loud"}.Logger()
	assert.Error(t, err)
}
