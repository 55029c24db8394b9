// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package notifier

import "time"

// Message types on the subscriber channel.
const (
	MessageTypeUpdate = "update"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
)

// UpdateMessage is the envelope pushed to every subscriber when a distinct
// new reading is stored.
type UpdateMessage struct {
	Type      string `json:"type"`
	Value     int64  `json:"value"`
	Timestamp string `json:"timestamp"`
	RawValue  string `json:"rawValue"`
}

// PongMessage answers a subscriber ping.
type PongMessage struct {
	Type string `json:"type"`
}

// inboundMessage is the shape read from subscribers. Only the type matters;
// everything except ping is ignored.
type inboundMessage struct {
	Type string `json:"type"`
}

// newUpdate builds an update envelope stamped with the current time.
func newUpdate(value int64, raw string) UpdateMessage {
	return UpdateMessage{
		Type:      MessageTypeUpdate,
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RawValue:  raw,
	}
}
