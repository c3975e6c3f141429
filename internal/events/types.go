// Package events carries the inspection side channel: one event per dispatched message,
// for tooling rather than script logic.
package events

import "time"

// Endpoint identifies a part taking part in a message exchange.
type Endpoint struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

// MessageEvent describes one dispatched message.
type MessageEvent struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Sender is nil for messages that arrived from outside the engine.
	Sender   *Endpoint `json:"sender,omitempty"`
	Receiver Endpoint  `json:"receiver"`
	// Handler is the part whose handler ran; nil when nothing handled the message.
	Handler   *Endpoint `json:"handler,omitempty"`
	Ignored   bool      `json:"ignored,omitempty"`
	Error     string    `json:"error,omitempty"`
	Depth     int       `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
}
