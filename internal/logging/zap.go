package logging

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// EnvProduction selects JSON output at info level.
const EnvProduction = "production"

// NewZap builds the process logger. Production uses zap's production config;
// every other environment gets the development console encoder with colour levels.
func NewZap(env string) (*zap.Logger, error) {
	var config zap.Config
	if env == EnvProduction {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.OutputPaths = []string{"stdout"}

	return config.Build()
}

// NewSlog exposes a zap core through the slog API used across the services.
func NewSlog(core zapcore.Core) *slog.Logger {
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true)))
}
