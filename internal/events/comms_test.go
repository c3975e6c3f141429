package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

// startTestServer starts an in-process COMMS server and connects to it.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("events:comms_test - failed to create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("events:comms_test - server failed to start")
	}

	nc, err := Connect(ns.ClientURL(), "simpletalk-test")
	if err != nil {
		ns.Shutdown()
		t.Fatalf("events:comms_test - failed to connect: %v", err)
	}
	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

func sampleEvent() *MessageEvent {
	return &MessageEvent{
		Name:      "mouseUp",
		Kind:      "command",
		Receiver:  Endpoint{Type: "button", ID: 5},
		Handler:   &Endpoint{Type: "card", ID: 2},
		Depth:     1,
		Timestamp: time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
	}
}

func subscribe(t *testing.T, nc *comms.Conn, subject string) <-chan *MessageEvent {
	t.Helper()
	received := make(chan *MessageEvent, 1)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event MessageEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("events:comms_test - failed to unmarshal: %v", err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("events:comms_test - failed to subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
	return received
}

func TestCommsPublisher_ReceiverSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14330)
	defer cleanup()

	received := subscribe(t, nc, "simpletalk.messages.button")
	if err := NewCommsPublisher(nc, nil).Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("events:comms_test - Publish failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Name != "mouseUp" || got.Receiver.ID != 5 {
			t.Errorf("events:comms_test - unexpected event %+v", got)
		}
		if got.Handler == nil || got.Handler.Type != "card" {
			t.Errorf("events:comms_test - Handler = %+v, want card", got.Handler)
		}
		if got.Sender != nil {
			t.Errorf("events:comms_test - Sender = %+v, want nil", got.Sender)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_test - timeout waiting for receiver event")
	}
}

func TestCommsPublisher_CustomSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14331)
	defer cleanup()

	received := subscribe(t, nc, "inspect")
	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{Subject: "inspect"})
	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("events:comms_test - Publish failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Depth != 1 || !got.Timestamp.Equal(sampleEvent().Timestamp) {
			t.Errorf("events:comms_test - unexpected event %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_test - timeout waiting for global event")
	}
}

func TestBuildReceiverSubject(t *testing.T) {
	if got := BuildReceiverSubject(SubjectMessages, "field"); got != "simpletalk.messages.field" {
		t.Errorf("BuildReceiverSubject = %q", got)
	}
}
