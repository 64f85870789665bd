package events

import "log/slog"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// LogEmitter writes every event to a structured logger. The daemon wires it
// as the default subscriber so operators see engine activity without an
// external indexer.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if typed, ok := evt.(interface{ Attributes() map[string]any }); ok {
		attrs := make([]any, 0, len(typed.Attributes())*2)
		for k, v := range typed.Attributes() {
			attrs = append(attrs, k, v)
		}
		logger.Info(evt.EventType(), attrs...)
		return
	}
	logger.Info(evt.EventType())
}
