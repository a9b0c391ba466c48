// Package audit implements the append-only trace sink that records
// guardrail outcomes, reflections, safe-fail triggers, and weather fetch
// attempts as self-contained JSON lines.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flightassist/skyguard/pkg/logger"
)

// Category identifies what kind of outcome an AuditEvent records.
type Category string

const (
	CategoryGuardrailPass Category = "guardrail_pass"
	CategoryGuardrailFail Category = "guardrail_fail"
	CategoryReflection    Category = "reflection"
	CategorySafeFail      Category = "safe_fail"
	CategoryFetch         Category = "fetch"
)

// Event is one step recorded inside a Record (e.g. a fetch attempt or a
// trig operation), kept deliberately schema-light since consumers are
// expected to branch on Type.
type Event struct {
	Type    string      `json:"type"`
	TS      int64       `json:"ts"`
	Payload interface{} `json:"payload,omitempty"`
}

// Record is one self-contained audit line: a trace id, a category, a
// context map, and the ordered events that led to the outcome.
type Record struct {
	TraceID  string                 `json:"trace_id"`
	Category Category               `json:"category"`
	TS       int64                  `json:"ts"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Events   []Event                `json:"events"`
}

// NewTraceID returns a trace id in the "<unix-ms>-<hex8>" shape used
// throughout the service.
func NewTraceID(now time.Time) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), id[:8])
}

// Sink appends Records to a single JSONL file, serializing writes so two
// concurrent requests never interleave partial records.
type Sink struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewSink creates a Sink writing to path, creating parent directories as
// needed. It does not open the file until the first Emit.
func NewSink(path string, log *logger.Logger) *Sink {
	return &Sink{path: path, logger: log.Named("audit-sink")}
}

// Emit appends one Record as a single JSON line. Write failures are logged
// and swallowed: an audit write must never fail the user's request.
func (s *Sink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("failed to marshal audit record", logger.Error(err), logger.String("trace_id", r.TraceID))
		return
	}
	line = append(line, '\n')

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("failed to create audit log directory", logger.Error(err), logger.String("dir", dir))
			return
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Error("failed to open audit log", logger.Error(err), logger.String("path", s.path))
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		s.logger.Error("failed to write audit record", logger.Error(err), logger.String("trace_id", r.TraceID))
	}
}

// Builder accumulates events for a single trace before Emit, mirroring the
// set_context/log_*/emit call sequence used at every call site.
type Builder struct {
	record Record
	now    func() time.Time
}

// NewBuilder starts a new Record in the given category with a fresh trace id.
func NewBuilder(category Category, now time.Time) *Builder {
	return &Builder{
		record: Record{
			TraceID:  NewTraceID(now),
			Category: category,
			TS:       now.UnixMilli(),
			Context:  map[string]interface{}{},
		},
		now: func() time.Time { return now },
	}
}

// WithContext merges key/value pairs into the record's context.
func (b *Builder) WithContext(kv map[string]interface{}) *Builder {
	for k, v := range kv {
		b.record.Context[k] = v
	}
	return b
}

// Log appends one event of the given type with an arbitrary payload.
func (b *Builder) Log(eventType string, payload interface{}) *Builder {
	b.record.Events = append(b.record.Events, Event{
		Type:    eventType,
		TS:      b.now().UnixMilli(),
		Payload: payload,
	})
	return b
}

// TraceID returns the trace id assigned to this record.
func (b *Builder) TraceID() string { return b.record.TraceID }

// Build returns the finished Record.
func (b *Builder) Build() Record { return b.record }
