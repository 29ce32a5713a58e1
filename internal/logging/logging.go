// Package logging wraps an append-only log sink: each call writes one
// structured line, and content is advisory - callers should not assert on
// log text. The sink is a zap.Logger so field names stay structured, but
// callers only ever reach the narrow Sink interface below.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is the opaque log(line) collaborator handlers and the gossip engine
// depend on, rather than on *zap.Logger directly, so tests can substitute
// zaptest.NewLogger or a no-op.
type Sink interface {
	Event(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Sink
}

type zapSink struct {
	logger *zap.Logger
}

// New builds a Sink that writes structured JSON lines to path, or to stderr
// when path is empty. Every line is tagged with the server's own name so
// logs from a federation of processes can be told apart once aggregated.
func New(serverName string, path string) (Sink, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if path == "" {
		cfg.OutputPaths = []string{"stderr"}
	} else {
		cfg.OutputPaths = []string{path}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapSink{logger: logger.With(zap.String("server", serverName))}, nil
}

// Wrap adapts an existing *zap.Logger into a Sink, used by tests that build
// their logger with zaptest.
func Wrap(logger *zap.Logger) Sink {
	return &zapSink{logger: logger}
}

func (s *zapSink) Event(msg string, fields ...zap.Field) {
	s.logger.Info(msg, fields...)
}

func (s *zapSink) With(fields ...zap.Field) Sink {
	return &zapSink{logger: s.logger.With(fields...)}
}
