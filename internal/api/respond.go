// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package api exposes the read-only query surface over HTTP. All
// responses are JSON; errors share a single envelope so clients can
// handle failures uniformly.
package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/models"
)

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError writes the shared error envelope. Client errors are logged
// at debug, server errors at error.
func respondError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		logging.Error().Int("status", status).Str("error", message).Msg("request failed")
	} else {
		logging.Debug().Int("status", status).Str("error", message).Msg("request rejected")
	}

	respondJSON(w, status, models.ErrorResponse{
		Success:    false,
		Error:      message,
		StatusCode: status,
	})
}
