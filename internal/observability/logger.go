// Package observability provides the structured logger and Prometheus
// metrics shared by the demo service's ambient layer (world, gateway,
// persistence). The core aoi/internal/spatial/internal/delta packages take
// no logger at all; a library that logs on every insert fights its caller.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a production logger: JSON-encoded, ISO8601 timestamps,
// no stacktraces on error-level logs (they're noise for expected AOI
// lifecycle events).
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = ""

	return cfg.Build()
}

// NewDevelopmentLogger returns a console-encoded, colorized logger for
// local runs of cmd/server.
func NewDevelopmentLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
