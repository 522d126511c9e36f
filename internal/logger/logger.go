package logger

import (
	"github.com/dimitrije/shipyard/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production emits JSON, everything else the
// human-readable console encoder. Every entry carries the service name.
func New(cfg *config.Config, service string) (*zap.Logger, error) {
	var logConfig zap.Config
	if cfg.IsProduction() {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}
	logConfig.Level.SetLevel(level)

	log, err := logConfig.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}

// Nop is handed to components constructed without a logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}
