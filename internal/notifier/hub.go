// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package notifier maintains the set of live WebSocket subscribers and
// pushes an update envelope to all of them whenever a distinct new reading
// is stored.
//
// The hub owns the subscriber set; registration, removal, and broadcast all
// flow through its channels, so the set is only ever touched from the hub
// goroutine. Each subscriber has a buffered send queue drained by its own
// write pump, which keeps per-connection delivery ordered and isolates a
// slow or dead subscriber from the rest.
package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/metrics"
	"github.com/lumenlab/lumend/internal/models"
)

// LatestFunc supplies the most recent stored reading for the greeting push
// on subscriber registration. ok is false when the store is empty.
type LatestFunc func() (reading models.Reading, ok bool)

// Hub maintains the set of active subscribers and broadcasts updates.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan UpdateMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	maxClients   int
	pingInterval time.Duration
	latest       LatestFunc
}

// NewHub creates a hub. latest may be nil, in which case new subscribers
// get no greeting push.
func NewHub(maxClients int, pingInterval time.Duration, latest LatestFunc) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		broadcast:    make(chan UpdateMessage, 256),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		maxClients:   maxClients,
		pingInterval: pingInterval,
		latest:       latest,
	}
}

// Run starts the hub without context support. Prefer RunWithContext for
// supervised operation; Run exists for tests that drive the hub directly.
func (h *Hub) Run() {
	_ = h.RunWithContext(context.Background())
}

// RunWithContext processes registrations, removals, and broadcasts until
// the context is canceled, then closes every subscriber and returns
// ctx.Err().
//
// Events are drained in priority order (shutdown, then lifecycle, then
// broadcast) so the subscriber set is consistent before any message is
// delivered, regardless of which channels are ready simultaneously.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// register adds a subscriber, enforcing the capacity limit and pushing the
// latest stored reading to the newcomer best-effort.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if len(h.clients) >= h.maxClients {
		h.mu.Unlock()
		logging.Warn().
			Int("max_clients", h.maxClients).
			Msg("subscriber limit reached, rejecting connection")
		client.rejectOverloaded()
		client.accepted <- false
		return
	}
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	client.accepted <- true
	metrics.SubscribersActive.Set(float64(total))
	logging.Info().Int("total_subscribers", total).Msg("subscriber connected")

	// Greet the newcomer with the latest stored reading. A failed push
	// only costs this subscriber its registration, never the register
	// operation itself.
	if h.latest == nil {
		return
	}
	if reading, ok := h.latest(); ok {
		select {
		case client.send <- newUpdate(reading.Value, reading.Raw):
			metrics.MessagesSentTotal.WithLabelValues(MessageTypeUpdate).Inc()
		default:
			h.unregister(client)
		}
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SubscribersActive.Set(float64(total))
	logging.Info().Int("total_subscribers", total).Msg("subscriber disconnected")
}

// BroadcastUpdate queues an update envelope for delivery to every
// subscriber. A full broadcast queue drops the message rather than
// blocking the ingest path.
func (h *Hub) BroadcastUpdate(value int64, raw string) {
	select {
	case h.broadcast <- newUpdate(value, raw):
	default:
		metrics.MessagesDroppedTotal.Inc()
		logging.Warn().Int64("value", value).Msg("broadcast queue full, dropping update")
	}
}

// broadcastToClients delivers a message to every subscriber in client-ID
// order. Subscribers whose send queue is full are removed; one failing
// subscriber never aborts delivery to the others.
func (h *Hub) broadcastToClients(message UpdateMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.MessagesSentTotal.WithLabelValues(message.Type).Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.SubscribersActive.Set(float64(len(h.clients)))
		logging.Info().
			Int("removed", len(toRemove)).
			Int("total_subscribers", len(h.clients)).
			Msg("removed unreachable subscribers during broadcast")
	}
}

// shutdown closes every live subscriber, best effort, in client-ID order.
func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.SubscribersActive.Set(0)
	logging.Info().
		Str("component", "notifier-hub").
		Int("clients_closed", len(clients)).
		Msg("notifier hub stopped")
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
