// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenlab/lumend/internal/models"
)

func newFakeClient(hub *Hub) *Client {
	// No underlying connection; only the send queue and hub wiring are
	// exercised.
	return NewClient(hub, nil)
}

// startHub runs the hub loop and returns a stop function that waits for
// shutdown.
func startHub(t *testing.T, hub *Hub) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(10, time.Minute, nil)
	stop := startHub(t, hub)
	defer stop()

	client := newFakeClient(hub)
	hub.Register <- client
	waitForCount(t, hub, 1)

	hub.Unregister <- client
	waitForCount(t, hub, 0)

	// The hub closes the send queue on unregister.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send queue, got a message")
		}
	case <-time.After(time.Second):
		t.Error("send queue was not closed")
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(10, time.Minute, nil)
	stop := startHub(t, hub)
	defer stop()

	a := newFakeClient(hub)
	b := newFakeClient(hub)
	hub.Register <- a
	hub.Register <- b
	waitForCount(t, hub, 2)

	hub.BroadcastUpdate(42, "LDR=42")

	for _, client := range []*Client{a, b} {
		select {
		case raw := <-client.send:
			msg, ok := raw.(UpdateMessage)
			if !ok {
				t.Fatalf("received %T, want UpdateMessage", raw)
			}
			if msg.Type != MessageTypeUpdate || msg.Value != 42 || msg.RawValue != "LDR=42" {
				t.Errorf("message = %+v, want update/42/LDR=42", msg)
			}
			if msg.Timestamp == "" {
				t.Error("message timestamp is empty")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubRejectsOverCapacity(t *testing.T) {
	hub := NewHub(2, time.Minute, nil)
	stop := startHub(t, hub)
	defer stop()

	hub.Register <- newFakeClient(hub)
	hub.Register <- newFakeClient(hub)
	waitForCount(t, hub, 2)

	rejected := newFakeClient(hub)
	hub.Register <- rejected

	// Give the hub time to process; the count must not grow.
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 2 {
		t.Errorf("ClientCount() = %d, want 2 after rejection", got)
	}
}

func TestHubSignalsRegistrationVerdict(t *testing.T) {
	hub := NewHub(1, time.Minute, nil)
	stop := startHub(t, hub)
	defer stop()

	first := newFakeClient(hub)
	hub.Register <- first
	if !<-first.accepted {
		t.Fatal("first client was not accepted")
	}

	// The rejected client must see a false verdict so its pumps are
	// never started on the closed connection.
	second := newFakeClient(hub)
	hub.Register <- second
	if <-second.accepted {
		t.Error("over-capacity client was reported accepted")
	}
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHubRemovesClientWithFullQueue(t *testing.T) {
	hub := NewHub(10, time.Minute, nil)
	stop := startHub(t, hub)
	defer stop()

	healthy := newFakeClient(hub)
	stuck := newFakeClient(hub)
	hub.Register <- healthy
	hub.Register <- stuck
	waitForCount(t, hub, 2)

	// Fill the stuck client's queue so the next broadcast cannot be
	// delivered to it.
	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- PongMessage{Type: MessageTypePong}
	}

	hub.BroadcastUpdate(7, "LDR=7")
	waitForCount(t, hub, 1)

	select {
	case raw := <-healthy.send:
		msg, ok := raw.(UpdateMessage)
		if !ok || msg.Value != 7 {
			t.Errorf("healthy client received %+v, want update with value 7", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("healthy client did not receive broadcast")
	}
}

func TestHubPushesLatestOnRegister(t *testing.T) {
	reading := models.Reading{ID: 3, Value: 99, Raw: "LDR=99", RecordedAt: time.Now().UTC()}
	hub := NewHub(10, time.Minute, func() (models.Reading, bool) {
		return reading, true
	})
	stop := startHub(t, hub)
	defer stop()

	client := newFakeClient(hub)
	hub.Register <- client
	waitForCount(t, hub, 1)

	select {
	case raw := <-client.send:
		msg, ok := raw.(UpdateMessage)
		if !ok {
			t.Fatalf("received %T, want UpdateMessage", raw)
		}
		if msg.Value != 99 || msg.RawValue != "LDR=99" {
			t.Errorf("greeting = %+v, want latest reading 99", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive latest reading on register")
	}
}

func TestHubNoGreetingWhenStoreEmpty(t *testing.T) {
	hub := NewHub(10, time.Minute, func() (models.Reading, bool) {
		return models.Reading{}, false
	})
	stop := startHub(t, hub)
	defer stop()

	client := newFakeClient(hub)
	hub.Register <- client
	waitForCount(t, hub, 1)

	select {
	case raw := <-client.send:
		t.Errorf("unexpected message %+v for empty store", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(10, time.Minute, nil)
	stop := startHub(t, hub)

	client := newFakeClient(hub)
	hub.Register <- client
	waitForCount(t, hub, 1)

	stop()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d after shutdown, want 0", got)
	}
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send queue after shutdown")
		}
	default:
		t.Error("send queue was not closed on shutdown")
	}
}

func TestClientHandleMessage(t *testing.T) {
	hub := NewHub(10, time.Minute, nil)
	client := newFakeClient(hub)

	tests := []struct {
		name     string
		data     string
		wantPong bool
	}{
		{"ping gets pong", `{"type":"ping"}`, true},
		{"unknown type ignored", `{"type":"subscribe"}`, false},
		{"malformed json ignored", `{not json`, false},
		{"empty object ignored", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.handleMessage([]byte(tt.data))

			select {
			case raw := <-client.send:
				msg, ok := raw.(PongMessage)
				if !tt.wantPong {
					t.Fatalf("unexpected message %+v", raw)
				}
				if !ok || msg.Type != MessageTypePong {
					t.Errorf("reply = %+v, want pong", raw)
				}
			default:
				if tt.wantPong {
					t.Error("expected pong reply, got none")
				}
			}
		})
	}
}
