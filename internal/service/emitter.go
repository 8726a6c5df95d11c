package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tablereader/internal/logger"
)

// Events emitted by ReaderService.
const (
	EventConfigured   = "reader:configured"
	EventRunStarted   = "reader:run-started"
	EventRunCompleted = "reader:run-completed"
	EventRunFailed    = "reader:run-failed"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from whoever listens
// ─────────────────────────────────────────────────────────────

// EventEmitter receives service events. The CLI logs them; the MCP server
// forwards them as notifications.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to a zap logger.
type LogEmitter struct {
	log *zap.SugaredLogger
}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{log: logger.ComponentLogger("events")}
}

func (l *LogEmitter) Emit(ctx context.Context, event string, data any) {
	l.log.With(logger.FieldsFromContext(ctx)...).Debugw(event, "data", data)
}

// MultiEmitter fans events out to several emitters.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event string, data any) {
	for _, e := range m {
		e.Emit(ctx, event, data)
	}
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Snapshot returns a copy of the recorded events.
func (m *MockEmitter) Snapshot() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.Events...)
}

// Names returns the recorded event names in order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Events))
	for i, e := range m.Events {
		names[i] = e.Event
	}
	return names
}
