// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package models defines the shared data types exchanged between the store,
// the ingest listener, the notifier, and the query API.
package models

import "time"

// Reading is one persisted sensor sample. A Reading is created exactly once
// by the store and is immutable afterwards; it disappears only when the
// retention window evicts it.
type Reading struct {
	// ID is assigned by the store, strictly increasing with insertion
	// order and never reused.
	ID int64 `json:"id"`

	// Value is the parsed sensor magnitude. 0 doubles as the sentinel for
	// payloads that could not be parsed.
	Value int64 `json:"value"`

	// Raw is the original datagram text, kept verbatim for diagnostics.
	Raw string `json:"rawPayload"`

	// RecordedAt is stamped by the store at insert time (UTC). It is never
	// taken from the network.
	RecordedAt time.Time `json:"recordedAt"`
}

// Stats is the aggregate view over all stored readings. All fields are
// zero values when Count is 0.
type Stats struct {
	Count    int64      `json:"count"`
	Min      int64      `json:"min"`
	Max      int64      `json:"max"`
	Mean     float64    `json:"mean"`
	Earliest *time.Time `json:"earliestTimestamp"`
	Latest   *time.Time `json:"latestTimestamp"`
}
