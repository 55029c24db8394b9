// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package services

import (
	"context"
)

// DatagramListener matches *ingest.Listener's Serve method.
type DatagramListener interface {
	Serve(ctx context.Context) error
}

// IngestService wraps the UDP listener as a supervised service. A bind
// failure surfaces as a Serve error, so suture restarts the listener with
// backoff instead of the process dying.
type IngestService struct {
	listener DatagramListener
	name     string
}

// NewIngestService creates an ingest service wrapper.
func NewIngestService(listener DatagramListener) *IngestService {
	return &IngestService{
		listener: listener,
		name:     "udp-ingest",
	}
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	return s.listener.Serve(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *IngestService) String() string {
	return s.name
}
