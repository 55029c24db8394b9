// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package ingest implements the UDP listener that receives raw sensor
// datagrams, drops consecutive duplicates, and forwards new payloads to
// the reading store.
//
// One datagram is one payload: UTF-8 text, trimmed of surrounding
// whitespace, truncated by the transport at the receive buffer size. There
// is no framing, no reassembly, and no acknowledgment back to the sensor;
// datagrams the listener cannot keep up with are silently dropped by the
// kernel.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/metrics"
	"github.com/lumenlab/lumend/internal/models"
	"github.com/lumenlab/lumend/internal/store"
)

// Datagram processing results for the ingest metrics.
const (
	resultStored        = "stored"
	resultDuplicate     = "duplicate"
	resultParseFallback = "parse_fallback"
	resultStoreError    = "store_error"
)

// ErrAlreadyRunning is returned by Start when the listener is running.
var ErrAlreadyRunning = errors.New("ingest listener already running")

// stopJoinTimeout bounds the wait for the receive loop during Stop.
const stopJoinTimeout = 2 * time.Second

// ReadingStore is the slice of the store the listener needs.
type ReadingStore interface {
	Save(ctx context.Context, raw string) (models.Reading, error)
}

// Callback is invoked after every successful store of a new payload, with
// the stored reading and the sender's address.
type Callback func(reading models.Reading, sender net.Addr)

// Listener binds a UDP socket and feeds the ingest pipeline.
//
// The receive loop uses a bounded poll (read deadline = PollTimeout) so
// Stop is observed within one poll interval even when the sensor goes
// quiet.
type Listener struct {
	cfg      config.IngestConfig
	store    ReadingStore
	callback Callback

	mu      sync.Mutex
	conn    *net.UDPConn
	done    chan struct{}
	running atomic.Bool

	// lastPayload is the raw decoded string of the last successfully
	// stored datagram, valid only when hasLast is set. Comparison is on
	// the raw string, not the parsed value: "LDR=5" and "5" are distinct
	// payloads even though they parse identically. Process-local, never
	// persisted. hasLast keeps an empty first datagram from matching the
	// marker's zero value.
	lastPayload string
	hasLast     bool
}

// NewListener creates a listener. The callback may be nil.
func NewListener(cfg config.IngestConfig, store ReadingStore, callback Callback) *Listener {
	return &Listener{
		cfg:      cfg,
		store:    store,
		callback: callback,
	}
}

// Start binds the socket and launches the receive loop. A bind failure is
// fatal to this component only: it is logged and returned, never panicked.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return ErrAlreadyRunning
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port)))
	if err != nil {
		logging.Err(err).Str("host", l.cfg.Host).Int("port", l.cfg.Port).Msg("failed to resolve ingest address")
		return fmt.Errorf("failed to resolve ingest address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logging.Err(err).Str("addr", addr.String()).Msg("failed to bind ingest socket")
		return fmt.Errorf("failed to bind ingest socket: %w", err)
	}

	l.conn = conn
	l.done = make(chan struct{})
	l.running.Store(true)

	go l.receiveLoop()

	logging.Info().
		Str("component", "ingest").
		Str("addr", conn.LocalAddr().String()).
		Msg("udp listener started")
	return nil
}

// Addr returns the bound address, or nil before a successful Start. Mainly
// useful when the configured port is 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) receiveLoop() {
	defer close(l.done)

	buf := make([]byte, l.cfg.BufferSize)
	for l.running.Load() {
		if err := l.conn.SetReadDeadline(time.Now().Add(l.cfg.PollTimeout)); err != nil {
			logging.Err(err).Msg("failed to set read deadline on ingest socket")
			return
		}

		n, sender, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				// Poll expired with no data; re-check the stop flag.
				continue
			}
			if l.running.Load() {
				logging.Err(err).Msg("ingest socket read error")
			}
			continue
		}

		l.process(strings.TrimSpace(string(buf[:n])), sender)
	}
}

// process runs the change-detection and persistence step for one datagram.
// The dedup marker advances only on store success, so a payload the store
// rejected is not silently swallowed when it arrives again.
func (l *Listener) process(payload string, sender *net.UDPAddr) {
	if l.hasLast && payload == l.lastPayload {
		metrics.IngestDatagramsTotal.WithLabelValues(resultDuplicate).Inc()
		logging.Debug().Str("payload", payload).Msg("unchanged payload, skipping")
		return
	}

	reading, err := l.store.Save(context.Background(), payload)
	if err != nil {
		metrics.IngestDatagramsTotal.WithLabelValues(resultStoreError).Inc()
		logging.Err(err).Str("payload", payload).Msg("failed to store reading")
		return
	}

	logging.Info().
		Str("sender", sender.String()).
		Str("payload", payload).
		Int64("value", reading.Value).
		Msg("reading stored")

	l.lastPayload = payload
	l.hasLast = true

	result := resultStored
	if _, ok := store.ParsePayload(payload); !ok {
		result = resultParseFallback
	}
	metrics.IngestDatagramsTotal.WithLabelValues(result).Inc()
	metrics.IngestLastValue.Set(float64(reading.Value))

	if l.callback != nil {
		l.callback(reading, sender)
	}
}

// Stop flips the running flag, closes the socket, and joins the receive
// loop with a bounded wait. Idempotent, and safe to call even when Start
// never succeeded.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.CompareAndSwap(true, false) {
		return
	}

	if l.conn != nil {
		_ = l.conn.Close()
	}

	select {
	case <-l.done:
	case <-time.After(stopJoinTimeout):
		logging.Warn().Msg("ingest receive loop did not stop within the join timeout")
	}

	logging.Info().Str("component", "ingest").Msg("udp listener stopped")
}

// Serve adapts the listener to the supervisor's context-driven lifecycle:
// it starts the listener, blocks until the context is canceled, then stops.
func (l *Listener) Serve(ctx context.Context) error {
	if err := l.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	l.Stop()
	return ctx.Err()
}
