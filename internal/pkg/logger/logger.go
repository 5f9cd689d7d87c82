package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production gets JSON; every other env gets
// a console encoder. LOG_LEVEL overrides the default level.
func New(appEnv string) *zap.Logger {
	cfg := newConfig(appEnv)

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.Set(lvl); err == nil {
			cfg.Level.SetLevel(level)
		}
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	zap.RedirectStdLog(log)
	return log
}

func newConfig(appEnv string) zap.Config {
	if appEnv != "production" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	return cfg
}
