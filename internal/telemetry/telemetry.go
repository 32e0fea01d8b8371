// Package telemetry provides a JSONL event stream for recording lifecycle
// transitions during a buildscript invocation. Every acquisition, state
// change, descriptor write and service registration is recorded as a
// structured JSON event tagged with the invocation's run ID.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event kinds identify the type of telemetry event.
const (
	KindInvocationStart   = "invocation_start"
	KindInvocationDone    = "invocation_done"
	KindTargetAcquired    = "target_acquired"
	KindTargetState       = "target_state"
	KindTargetFailed      = "target_failed"
	KindPhaseDone         = "phase_done"
	KindDescriptorWritten = "descriptor_written"
	KindServiceRegistered = "service_registered"
	KindSupervisorExited  = "supervisor_exited"
	KindRebuildTriggered  = "rebuild_triggered"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and optional context identifiers (run, target) along with
// arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Target    string    `json:"target,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// NewRunID returns a fresh, lexically time-ordered invocation identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. Missing parent directories are created. The file is created if it
// does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes a single event to the JSONL file. It is safe for concurrent use.
// Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
