// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package store

import (
	"strconv"
	"strings"
)

// ParsePayload extracts the integer sensor value from a raw datagram
// payload. Payloads of the form "<label>=<integer>" (typically "LDR=123")
// yield the integer after the first '='; anything else is parsed as a bare
// integer. For payloads that parse neither way, ok is false and the value
// is the sentinel 0, so that malformed input can still be persisted for
// diagnosis.
func ParsePayload(raw string) (value int64, ok bool) {
	raw = strings.TrimSpace(raw)

	if _, after, found := strings.Cut(raw, "="); found {
		v, err := strconv.ParseInt(strings.TrimSpace(after), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
