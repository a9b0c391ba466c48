package tools

import "sync"

// LoggedEvent is one recorded flight event.
type LoggedEvent struct {
	PilotID   string
	EventType string
	Data      map[string]interface{}
}

// MemoryEventLogger is an in-memory FlightEventLogger, standing in for the
// production database write path.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
}

// NewMemoryEventLogger returns an empty logger.
func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

// LogEvent records one event.
func (l *MemoryEventLogger) LogEvent(pilotID, eventType string, data map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, LoggedEvent{PilotID: pilotID, EventType: eventType, Data: data})
}

// Events returns a copy of everything logged so far.
func (l *MemoryEventLogger) Events() []LoggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoggedEvent, len(l.events))
	copy(out, l.events)
	return out
}
