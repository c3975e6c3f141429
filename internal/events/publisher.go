package events

import (
	"context"
	"sync"
)

// Publisher receives every dispatched message event.
type Publisher interface {
	Publish(ctx context.Context, event *MessageEvent) error
}

// NoOpPublisher discards events.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, *MessageEvent) error { return nil }

// CallbackPublisher hands each event to a function.
type CallbackPublisher struct {
	cb func(*MessageEvent)
}

func NewCallbackPublisher(cb func(*MessageEvent)) *CallbackPublisher {
	return &CallbackPublisher{cb: cb}
}

func (p *CallbackPublisher) Publish(_ context.Context, event *MessageEvent) error {
	if p.cb != nil {
		p.cb(event)
	}
	return nil
}

// Recorder keeps the most recent events in memory, oldest first.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []*MessageEvent
}

// NewRecorder keeps at most limit events; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Publish(_ context.Context, event *MessageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

func (r *Recorder) Events() []*MessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MessageEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Multi fans an event out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event *MessageEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
