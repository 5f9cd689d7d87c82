package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig_ProductionIsJSON(t *testing.T) {
	cfg := newConfig("production")
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "message", cfg.EncoderConfig.MessageKey)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
}

func TestNewConfig_OtherEnvsAreConsole(t *testing.T) {
	for _, env := range []string{"development", "staging", "test", ""} {
		cfg := newConfig(env)
		assert.Equal(t, "console", cfg.Encoding, env)
		assert.True(t, cfg.Development, env)
	}
}

func TestNew_LogLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	log := New("production")
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}
