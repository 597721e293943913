// Package events provides a typed, synchronous publish/subscribe hub for
// analysis, cost and settings notifications.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Name identifies an event kind.
type Name string

const (
	AnalysisStartedEvent   Name = "analysis:started"
	AnalysisCompletedEvent Name = "analysis:completed"
	AnalysisFailedEvent    Name = "analysis:failed"
	CostUpdatedEvent       Name = "cost:updated"
	SettingsChangedEvent   Name = "settings:changed"
)

// Payload is implemented by every event body. Event reports the name the
// payload is published under.
type Payload interface {
	Event() Name
}

// AnalysisStarted is published when an item enters the analysis pipeline.
type AnalysisStarted struct {
	ItemID string `json:"itemId"`
}

// AnalysisCompleted is published with the generated summary.
type AnalysisCompleted struct {
	ItemID  string `json:"itemId"`
	Summary string `json:"summary"`
}

// AnalysisFailed is published when an analysis cannot be produced.
type AnalysisFailed struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// CostUpdated is published after every tracked usage record.
type CostUpdated struct {
	TotalSpend  float64  `json:"totalSpend"`
	BudgetLimit *float64 `json:"budgetLimit,omitempty"`
}

// SettingsChanged is published when a settings key is replaced.
type SettingsChanged struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (AnalysisStarted) Event() Name   { return AnalysisStartedEvent }
func (AnalysisCompleted) Event() Name { return AnalysisCompletedEvent }
func (AnalysisFailed) Event() Name    { return AnalysisFailedEvent }
func (CostUpdated) Event() Name       { return CostUpdatedEvent }
func (SettingsChanged) Event() Name   { return SettingsChangedEvent }

// Handler receives a published payload.
type Handler func(Payload)

// ListenerID identifies a registered handler for removal.
type ListenerID uint64

type listener struct {
	id      ListenerID
	handler Handler
	once    bool
}

// Emitter dispatches payloads to the handlers registered for their name.
// The zero value is not usable; construct with New.
type Emitter struct {
	mu        sync.RWMutex
	next      ListenerID
	listeners map[Name][]listener
	logger    zerolog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Emitter) { e.logger = l }
}

// New creates an empty emitter.
func New(opts ...Option) *Emitter {
	e := &Emitter{listeners: make(map[Name][]listener), logger: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddListener registers h for name and returns its id.
func (e *Emitter) AddListener(name Name, h Handler) ListenerID {
	return e.add(name, h, false)
}

// On registers h for name and returns a func that unregisters it.
func (e *Emitter) On(name Name, h Handler) func() {
	id := e.add(name, h, false)
	return func() { e.Off(name, id) }
}

// Once registers h to run for the next name event only.
func (e *Emitter) Once(name Name, h Handler) func() {
	id := e.add(name, h, true)
	return func() { e.Off(name, id) }
}

func (e *Emitter) add(name Name, h Handler, once bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.listeners[name] = append(e.listeners[name], listener{id: e.next, handler: h, once: once})
	return e.next
}

// Off removes the listener with the given id. Unknown ids are ignored.
func (e *Emitter) Off(name Name, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remove(name, id)
}

func (e *Emitter) remove(name Name, id ListenerID) bool {
	ls := e.listeners[name]
	for i, l := range ls {
		if l.id == id {
			e.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			if len(e.listeners[name]) == 0 {
				delete(e.listeners, name)
			}
			return true
		}
	}
	return false
}

// Emit calls every handler registered for p's name, in registration order,
// on the caller's goroutine. A panicking handler is logged and skipped.
func (e *Emitter) Emit(p Payload) {
	name := p.Event()

	e.mu.Lock()
	ls := make([]listener, len(e.listeners[name]))
	copy(ls, e.listeners[name])
	for _, l := range ls {
		if l.once {
			e.remove(name, l.id)
		}
	}
	e.mu.Unlock()

	for _, l := range ls {
		e.call(name, l.handler, p)
	}
}

func (e *Emitter) call(name Name, h Handler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("event", string(name)).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	h(p)
}

// RemoveAllListeners drops the listeners for the given names, or for every
// name when none are given.
func (e *Emitter) RemoveAllListeners(names ...Name) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(names) == 0 {
		e.listeners = make(map[Name][]listener)
		return
	}
	for _, n := range names {
		delete(e.listeners, n)
	}
}

// ListenerCount returns the number of handlers registered for name.
func (e *Emitter) ListenerCount(name Name) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

// Subscribe registers a handler typed to one payload struct. The handler is
// bound to the name P reports.
func Subscribe[P Payload](e *Emitter, fn func(P)) func() {
	var zero P
	return e.On(zero.Event(), func(p Payload) {
		if v, ok := p.(P); ok {
			fn(v)
		}
	})
}
