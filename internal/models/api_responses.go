// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package models

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Success       bool     `json:"success"`
	Status        string   `json:"status"`
	TotalReadings int64    `json:"totalReadings"`
	Endpoints     []string `json:"endpoints"`
}

// LatestResponse is the body of GET /api/latest. Data is null when the
// store is empty.
type LatestResponse struct {
	Success bool     `json:"success"`
	Data    *Reading `json:"data"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Success bool      `json:"success"`
	Data    []Reading `json:"data"`
	Count   int       `json:"count"`
	Limit   int       `json:"limit"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Success bool  `json:"success"`
	Data    Stats `json:"data"`
}

// NetworkResponse is the body of GET /api/network.
type NetworkResponse struct {
	Success bool        `json:"success"`
	Data    NetworkInfo `json:"data"`
}

// NetworkInfo describes how the three listeners are bound, for the
// deployment diagnostics endpoint.
type NetworkInfo struct {
	BindHost       string   `json:"bindHost"`
	IngestPort     int      `json:"ingestPort"`
	HTTPPort       int      `json:"httpPort"`
	NotifierPort   int      `json:"notifierPort"`
	Subscribers    int      `json:"subscribers"`
	LocalAddresses []string `json:"localAddresses"`
	URLs           []string `json:"urls"`
}

// ErrorResponse is the error body shape shared by every endpoint.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}
