package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const commsLogPrefix = "events:comms"

// SubjectMessages is the default subject every message event is published to.
const SubjectMessages = "simpletalk.messages"

// BuildReceiverSubject builds the granular subject for events received by a part type.
func BuildReceiverSubject(base, receiverType string) string {
	return fmt.Sprintf("%s.%s", base, receiverType)
}

// Connect opens a COMMS connection for the inspection side channel.
func Connect(url, name string) (*comms.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", commsLogPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(10*time.Second),
		comms.ReconnectWait(2*time.Second),
		comms.MaxReconnects(60),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - COMMS disconnected: %v", commsLogPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS reconnected to %s", commsLogPrefix, nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", commsLogPrefix, err)
	}
	return nc, nil
}

// CommsPublisherOpts configures CommsPublisher. Zero values use defaults.
type CommsPublisherOpts struct {
	Subject string
}

// CommsPublisher publishes message events as JSON to a global subject and to a
// per-receiver-type subject.
type CommsPublisher struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPublisher creates a CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := SubjectMessages
	if opts != nil && opts.Subject != "" {
		subject = opts.Subject
	}
	return &CommsPublisher{nc: nc, subject: subject}
}

func (p *CommsPublisher) Publish(_ context.Context, event *MessageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsLogPrefix, err)
	}

	granular := BuildReceiverSubject(p.subject, event.Receiver.Type)
	if err := p.nc.Publish(granular, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsLogPrefix, granular, err))
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsLogPrefix, p.subject, err))
		return err
	}
	return nil
}
