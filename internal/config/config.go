// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package config defines the static configuration consumed read-only by
// every component, loaded via Koanf v2 with layered sources.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object. It is built once at startup and
// handed to the components by reference; nothing mutates it afterwards.
type Config struct {
	Ingest   IngestConfig   `koanf:"ingest"`
	HTTP     HTTPConfig     `koanf:"http"`
	Notifier NotifierConfig `koanf:"notifier"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// IngestConfig configures the UDP ingest listener.
type IngestConfig struct {
	// Host is the bind address. "0.0.0.0" for IPv4, "::" for IPv6-only
	// deployments; the address family is purely configuration.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// PollTimeout bounds each blocking receive so the loop can observe
	// the stop flag.
	PollTimeout time.Duration `koanf:"poll_timeout"`

	// BufferSize is the receive buffer; larger datagrams are truncated by
	// the transport.
	BufferSize int `koanf:"buffer_size"`
}

// HTTPConfig configures the query API server.
type HTTPConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// NotifierConfig configures the WebSocket fanout server.
type NotifierConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	MaxClients   int           `koanf:"max_clients"`
	PingInterval time.Duration `koanf:"ping_interval"`
}

// StoreConfig configures the embedded reading store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `koanf:"path"`

	// MaxHistory is the retention window: the store never holds more rows
	// than this, evicting the oldest after each insert over the limit.
	MaxHistory int `koanf:"max_history"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if err := validatePort("ingest.port", c.Ingest.Port); err != nil {
		return err
	}
	if err := validatePort("http.port", c.HTTP.Port); err != nil {
		return err
	}
	if err := validatePort("notifier.port", c.Notifier.Port); err != nil {
		return err
	}
	if c.Ingest.PollTimeout <= 0 {
		return fmt.Errorf("ingest.poll_timeout must be positive, got %s", c.Ingest.PollTimeout)
	}
	if c.Ingest.BufferSize <= 0 {
		return fmt.Errorf("ingest.buffer_size must be positive, got %d", c.Ingest.BufferSize)
	}
	if c.Store.MaxHistory < 1 {
		return fmt.Errorf("store.max_history must be at least 1, got %d", c.Store.MaxHistory)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Notifier.MaxClients < 1 {
		return fmt.Errorf("notifier.max_clients must be at least 1, got %d", c.Notifier.MaxClients)
	}
	if c.Notifier.PingInterval <= 0 {
		return fmt.Errorf("notifier.ping_interval must be positive, got %s", c.Notifier.PingInterval)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535], got %d", name, port)
	}
	return nil
}
