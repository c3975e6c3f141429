package events

import (
	"context"
	"errors"
	"testing"
)

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, *MessageEvent) error { return p.err }

func TestRecorder(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		publish  []string
		expected []string
	}{
		{"unbounded", 0, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"keeps the newest", 2, []string{"a", "b", "c"}, []string{"b", "c"}},
		{"under the limit", 5, []string{"a"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(tt.limit)
			for _, name := range tt.publish {
				if err := r.Publish(context.Background(), &MessageEvent{Name: name}); err != nil {
					t.Fatalf("Publish: %v", err)
				}
			}
			got := r.Events()
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d events, got %d", len(tt.expected), len(got))
			}
			for i, name := range tt.expected {
				if got[i].Name != name {
					t.Errorf("Event %d: expected %q, got %q", i, name, got[i].Name)
				}
			}
		})
	}
}

func TestMulti(t *testing.T) {
	first := errors.New("first")
	var seen []string
	recorder := NewRecorder(0)
	m := Multi{
		NewCallbackPublisher(func(e *MessageEvent) { seen = append(seen, e.Name) }),
		failingPublisher{err: first},
		failingPublisher{err: errors.New("second")},
		recorder,
		NoOpPublisher{},
	}

	err := m.Publish(context.Background(), &MessageEvent{Name: "openCard"})
	if !errors.Is(err, first) {
		t.Errorf("Expected the first error, got %v", err)
	}
	if len(seen) != 1 || seen[0] != "openCard" {
		t.Errorf("Expected the callback to run, got %v", seen)
	}
	if len(recorder.Events()) != 1 {
		t.Error("Expected publishers after a failure to still receive the event")
	}
}

func TestCallbackPublisherWithoutCallback(t *testing.T) {
	if err := NewCallbackPublisher(nil).Publish(context.Background(), &MessageEvent{}); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
