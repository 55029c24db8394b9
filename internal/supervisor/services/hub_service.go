// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package services

import (
	"context"
)

// ContextHub matches *notifier.Hub's RunWithContext method. Keeping the
// dependency behind an interface avoids importing the notifier package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the notifier hub as a supervised service. RunWithContext
// already follows the suture.Service pattern, so this only delegates and
// names the service for logging.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "notifier-hub",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return s.name
}
