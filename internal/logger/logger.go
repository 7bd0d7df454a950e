package logger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/tabline/internal/config"
)

// Module exposes a configured Zap logger and its runtime level to the Fx container.
var Module = fx.Provide(New)

// Result carries the logger and the level that controls it. The level can be
// changed at runtime through its HTTP handler.
type Result struct {
	fx.Out

	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// New builds the service logger; Fx owns the Sync on shutdown.
func New(lc fx.Lifecycle, cfg config.Config) (Result, error) {
	obs := cfg.Observability
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := level.UnmarshalText([]byte(strings.ToLower(obs.LogLevel))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	zapCfg := buildConfig(obs.LogEncoding)
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return Result{}, err
	}

	logger = logger.With(
		zap.String("service", obs.ServiceName),
		zap.String("environment", obs.Environment),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync on stderr/stdout returns EINVAL on some platforms.
			_ = logger.Sync()
			return nil
		},
	})

	return Result{Logger: logger, Level: level}, nil
}

func buildConfig(encoding string) zap.Config {
	if encoding == "console" {
		zapCfg := zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapCfg
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = "json"
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapCfg
}
