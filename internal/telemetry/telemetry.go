package telemetry

import (
	"go.uber.org/zap"
)

// Sink receives emitted accounting events. Emission is fire and forget:
// implementations must not fail the caller.
type Sink interface {
	Emit(name string, fields map[string]any)
}

// ZapSink logs every emitted event through a structured logger.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log}
}

func (s *ZapSink) Emit(name string, fields map[string]any) {
	s.log.Info("emit", zap.String("event", name), zap.Any("fields", fields))
}

// MultiSink fans out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(name string, fields map[string]any) {
	for _, s := range m {
		s.Emit(name, fields)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(string, map[string]any) {}
