package events

import (
	"log/slog"
	"sort"
	"sync"

	"pcnchain/core/types"
)

// Event represents a structured state change emitted by the network engines.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that render to a canonical types.Event.
type Payload interface {
	Event
	Event() *types.Event
}

// Recorder keeps every emitted event in memory, bounded to the most recent
// Limit entries when Limit is positive.
type Recorder struct {
	Limit int

	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	if r.Limit > 0 && len(r.events) > r.Limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.Limit:]...)
	}
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the event types recorded so far, in order.
func (r *Recorder) Types() []string {
	evts := r.Events()
	out := make([]string, 0, len(evts))
	for _, evt := range evts {
		out = append(out, evt.EventType())
	}
	return out
}

// Fanout forwards every event to each configured emitter.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, e := range f {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Log writes each event to a structured logger at debug level.
type Log struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l Log) Emit(evt Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"type", evt.EventType()}
	if payload, ok := evt.(Payload); ok {
		if rendered := payload.Event(); rendered != nil {
			keys := make([]string, 0, len(rendered.Attributes))
			for k := range rendered.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				args = append(args, k, rendered.Attributes[k])
			}
		}
	}
	logger.Debug("event", args...)
}
