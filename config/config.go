// Package config loads settings from the environment, with an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServerURL         string        `env:"RUMMY_SERVER_URL,default=http://localhost:5001"`
	SocketPath        string        `env:"RUMMY_SOCKET_PATH,default=/socket"`
	SessionFile       string        `env:"RUMMY_SESSION_FILE,default=.rummy-session.json"`
	Token             string        `env:"RUMMY_TOKEN"`
	ReconnectDelay    time.Duration `env:"RUMMY_RECONNECT_DELAY,default=500ms"`
	ReconnectDelayMax time.Duration `env:"RUMMY_RECONNECT_DELAY_MAX,default=3s"`
	ConnectTimeout    time.Duration `env:"RUMMY_CONNECT_TIMEOUT,default=20s"`
	QueueLimit        int           `env:"RUMMY_QUEUE_LIMIT,default=256"`
	NotificationTTL   time.Duration `env:"RUMMY_NOTIFICATION_TTL,default=5s"`
	LogLevel          string        `env:"RUMMY_LOG_LEVEL,default=info"`
	DevAddr           string        `env:"RUMMY_DEV_ADDR,default=:5001"`
}

// Load reads the given .env files (".env" when none are given, missing
// files are fine) and then decodes the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decoding environment: %w", err)
	}
	if cfg.ReconnectDelayMax < cfg.ReconnectDelay {
		return Config{}, fmt.Errorf("RUMMY_RECONNECT_DELAY_MAX (%s) is below RUMMY_RECONNECT_DELAY (%s)", cfg.ReconnectDelayMax, cfg.ReconnectDelay)
	}
	return cfg, nil
}

// Logger builds a console logger at cfg.LogLevel. "debug" also turns on
// development mode.
func (cfg Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("RUMMY_LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
