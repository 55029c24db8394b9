// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package main is the entry point for the Lumend server.
//
// Lumend ingests light-sensor readings over UDP, keeps a bounded history
// in an embedded SQLite database, fans distinct new readings out to
// WebSocket subscribers, and serves a read-only JSON query API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config.yaml, and
//     environment variables (Koanf v2)
//  2. Store: embedded SQLite database with a bounded retention window
//  3. Notifier hub: real-time fanout to WebSocket subscribers
//  4. Ingest listener: UDP datagram receiver with duplicate suppression
//  5. HTTP servers: the query API and the WebSocket endpoint
//
// All long-running components run under a suture supervisor tree, so a
// crashing component is restarted with backoff instead of taking the
// process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (INGEST_PORT, HTTP_PORT, NOTIFIER_PORT, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Ports
//
// By default the server listens on three ports:
//   - 1234/udp: sensor datagram ingest
//   - 8080/tcp: JSON query API and Prometheus metrics
//   - 8765/tcp: WebSocket subscriber endpoint
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the listener
// stops reading, subscribers are closed, in-flight HTTP requests get 10
// seconds to complete, and the database is closed last.
//
// # Example Usage
//
//	export INGEST_PORT=1234
//	export HTTP_PORT=8080
//	export LOGGING_LEVEL=debug
//	./lumend
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenlab/lumend/internal/api"
	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/ingest"
	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/models"
	"github.com/lumenlab/lumend/internal/notifier"
	"github.com/lumenlab/lumend/internal/store"
	"github.com/lumenlab/lumend/internal/supervisor"
	"github.com/lumenlab/lumend/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Lumend with supervisor tree")
	logging.Info().
		Int("ingest_port", cfg.Ingest.Port).
		Int("http_port", cfg.HTTP.Port).
		Int("notifier_port", cfg.Notifier.Port).
		Str("db_path", cfg.Store.Path).
		Int("max_history", cfg.Store.MaxHistory).
		Msg("Configuration loaded")

	st, err := store.New(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open reading store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing reading store")
		}
	}()
	logging.Info().Msg("Reading store initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Notifier hub greets each new subscriber with the latest stored reading.
	hub := notifier.NewHub(cfg.Notifier.MaxClients, cfg.Notifier.PingInterval,
		func() (models.Reading, bool) {
			reading, err := st.Latest(context.Background())
			if err != nil || reading == nil {
				return models.Reading{}, false
			}
			return *reading, true
		})

	// Ingest listener stores each distinct reading and fans it out.
	listener := ingest.NewListener(cfg.Ingest, st,
		func(reading models.Reading, _ net.Addr) {
			hub.BroadcastUpdate(reading.Value, reading.Raw)
		})

	// Query API server.
	handler := api.NewHandler(st, hub, cfg)
	queryServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	// WebSocket subscriber endpoint.
	wsServer := notifier.NewServer(cfg.Notifier, hub)

	tree.AddIngestService(services.NewIngestService(listener))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewHTTPServerService(wsServer.HTTPServer(), 10*time.Second, "notifier-ws"))
	tree.AddAPIService(services.NewHTTPServerService(queryServer, 10*time.Second, "query-api"))

	logStartupBanner(cfg)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// logStartupBanner logs the addresses the service is reachable on,
// including per-interface URLs for LAN clients.
func logStartupBanner(cfg *config.Config) {
	logging.Info().
		Str("udp", fmt.Sprintf("%s:%d", cfg.Ingest.Host, cfg.Ingest.Port)).
		Str("http", fmt.Sprintf("http://%s:%d/api", cfg.HTTP.Host, cfg.HTTP.Port)).
		Str("ws", fmt.Sprintf("ws://%s:%d", cfg.Notifier.Host, cfg.Notifier.Port)).
		Msg("Listening")

	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	for _, addr := range ifaceAddrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			logging.Info().
				Str("url", fmt.Sprintf("http://%s:%d/api", ip4, cfg.HTTP.Port)).
				Msg("Reachable at")
		}
	}
}
