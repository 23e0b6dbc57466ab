// Package tracer implements the statement tracer (C4): a bounded ring
// buffer recording every statement issued against a datastore, for after-
// the-fact diagnosis. It is a no-op when disabled so the happy path never
// pays for stack-walking it isn't using.
package tracer

import (
	"runtime"
	"sync"
	"time"
)

// DefaultCapacity is the ring buffer size used when New is given a
// non-positive capacity.
const DefaultCapacity = 5000

// maxFrames is the number of caller frames captured per entry.
const maxFrames = 5

// stopFuncs names the call-stack boundaries past which the tracer stops
// capturing frames, mirroring the process-entrypoint/request-dispatch
// boundary the design calls out.
var stopFuncs = map[string]bool{
	"main.main":                  true,
	"net/http.(*conn).serve":     true,
	"runtime.goexit":             true,
}

// Entry is a single traced statement.
type Entry struct {
	Sequence  uint64
	Time      time.Time
	Statement string
	RowCount  int64
	Frames    []string
}

// Sink receives entries as they are recorded, for callers that want to
// forward traces to an external collector rather than only read the ring
// buffer. It is an external interface; Tracer never provides a default
// implementation beyond the buffer itself.
type Sink interface {
	TraceStatement(Entry)
}

// Tracer is a fixed-capacity ring buffer of Entry, safe for concurrent use.
// A disabled Tracer's Record is a no-op.
type Tracer struct {
	mu       sync.Mutex
	enabled  bool
	entries  []Entry
	head     int
	count    int
	seq      uint64
	sinks    []Sink
}

// New returns a Tracer with the given capacity (DefaultCapacity if
// non-positive). enabled controls whether Record does anything.
func New(enabled bool, capacity int) *Tracer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracer{
		enabled: enabled,
		entries: make([]Entry, capacity),
	}
}

// AddSink registers sink to receive every recorded entry going forward.
func (t *Tracer) AddSink(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

// Enabled reports whether the tracer records statements.
func (t *Tracer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled turns recording on or off.
func (t *Tracer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Record appends an entry for statement, executed with the given row
// count, capturing up to maxFrames caller frames. It is a no-op when the
// tracer is disabled.
func (t *Tracer) Record(statement string, rowCount int64) {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return
	}
	t.seq++
	entry := Entry{
		Sequence:  t.seq,
		Time:      time.Now(),
		Statement: statement,
		RowCount:  rowCount,
		Frames:    captureFrames(),
	}
	t.entries[t.head] = entry
	t.head = (t.head + 1) % len(t.entries)
	if t.count < len(t.entries) {
		t.count++
	}
	sinks := t.sinks
	t.mu.Unlock()

	for _, s := range sinks {
		s.TraceStatement(entry)
	}
}

// Snapshot returns a copy of the currently buffered entries, oldest first.
func (t *Tracer) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, t.count)
	if t.count == 0 {
		return out
	}
	start := (t.head - t.count + len(t.entries)) % len(t.entries)
	for i := 0; i < t.count; i++ {
		out[i] = t.entries[(start+i)%len(t.entries)]
	}
	return out
}

// Len reports how many entries are currently buffered.
func (t *Tracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func captureFrames() []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs) // skip Callers, captureFrames, Record
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, maxFrames)
	for len(out) < maxFrames {
		frame, more := frames.Next()
		out = append(out, frame.Function)
		if stopFuncs[frame.Function] || !more {
			break
		}
	}
	return out
}
