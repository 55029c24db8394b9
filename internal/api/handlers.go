// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// ReadingStore is the query surface the handlers need from the store.
type ReadingStore interface {
	Latest(ctx context.Context) (*models.Reading, error)
	History(ctx context.Context, limit int) ([]models.Reading, error)
	Stats(ctx context.Context) (models.Stats, error)
	Count(ctx context.Context) (int64, error)
}

// SubscriberCounter reports how many live WebSocket subscribers exist.
type SubscriberCounter interface {
	ClientCount() int
}

// Handler serves the query endpoints.
type Handler struct {
	store       ReadingStore
	subscribers SubscriberCounter
	cfg         *config.Config
}

// NewHandler creates the query handler set.
func NewHandler(store ReadingStore, subscribers SubscriberCounter, cfg *config.Config) *Handler {
	return &Handler{
		store:       store,
		subscribers: subscribers,
		cfg:         cfg,
	}
}

// Health reports service liveness and the available endpoints.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.HealthResponse{
		Success:       true,
		Status:        "healthy",
		TotalReadings: total,
		Endpoints: []string{
			"/api/health",
			"/api/latest",
			"/api/history",
			"/api/stats",
			"/api/network",
		},
	})
}

// Latest returns the most recent reading, or a null data field when
// nothing has been stored yet.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	reading, err := h.store.Latest(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.LatestResponse{
		Success: true,
		Data:    reading,
	})
}

// History returns up to limit readings, newest first. limit defaults to
// 50 and must be within [1, 1000].
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = parsed
	}
	if limit < 1 || limit > maxHistoryLimit {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
		return
	}

	readings, err := h.store.History(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.HistoryResponse{
		Success: true,
		Data:    readings,
		Count:   len(readings),
		Limit:   limit,
	})
}

// Stats returns aggregate statistics over the retained readings.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.StatsResponse{
		Success: true,
		Data:    stats,
	})
}

// Network describes how to reach the service: bind ports, subscriber
// count, and the addresses of local non-loopback interfaces.
func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	addrs := localAddresses()

	urls := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		urls = append(urls, fmt.Sprintf("http://%s:%d", addr, h.cfg.HTTP.Port))
	}

	respondJSON(w, http.StatusOK, models.NetworkResponse{
		Success: true,
		Data: models.NetworkInfo{
			BindHost:       h.cfg.HTTP.Host,
			IngestPort:     h.cfg.Ingest.Port,
			HTTPPort:       h.cfg.HTTP.Port,
			NotifierPort:   h.cfg.Notifier.Port,
			Subscribers:    h.subscribers.ClientCount(),
			LocalAddresses: addrs,
			URLs:           urls,
		},
	})
}

// localAddresses collects the IPv4 addresses of non-loopback interfaces.
// Best effort; an empty slice is a valid answer.
func localAddresses() []string {
	out := []string{}
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return out
	}
	for _, addr := range ifaceAddrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			out = append(out, ip4.String())
		}
	}
	return out
}
