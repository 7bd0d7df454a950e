package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/tabline/internal/config"
)

func TestNewAppliesLevel(t *testing.T) {
	var cfg config.Config
	cfg.Observability.LogLevel = "warn"
	cfg.Observability.LogEncoding = "json"

	lc := fxtest.NewLifecycle(t)
	res, err := New(lc, cfg)
	require.NoError(t, err)
	lc.RequireStart().RequireStop()

	assert.Equal(t, zapcore.WarnLevel, res.Level.Level())
	assert.False(t, res.Logger.Core().Enabled(zapcore.InfoLevel))

	res.Level.SetLevel(zapcore.DebugLevel)
	assert.True(t, res.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewFallsBackToInfo(t *testing.T) {
	var cfg config.Config
	cfg.Observability.LogLevel = "chatty"
	cfg.Observability.LogEncoding = "console"

	res, err := New(fxtest.NewLifecycle(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, res.Level.Level())
}
