// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package notifier

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers connect from arbitrary dashboards and tooling on the
	// local network.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server accepts WebSocket subscriber connections on a dedicated port and
// hands them to the hub.
type Server struct {
	hub  *Hub
	http *http.Server
}

// NewServer builds the subscriber endpoint for the given hub.
func NewServer(cfg config.NotifierConfig, hub *Hub) *Server {
	s := &Server{hub: hub}
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the HTTP handler that upgrades connections. Exposed so
// tests can serve it through httptest.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(s.hub, conn)
		s.hub.Register <- client
		if <-client.accepted {
			client.Start()
		}
	})
}

// HTTPServer returns the underlying server for supervised lifecycle
// management.
func (s *Server) HTTPServer() *http.Server {
	return s.http
}
