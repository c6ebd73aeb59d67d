// Package config implements the runtime configuration snapshot:
// immutable value objects swapped in under an atomic pointer so every
// reader gets a consistent view without a lock (spec §6: "applied
// atomically at tick boundaries, not mid-diff"), plus the YAML
// bootstrap loader for the options that exist before the first
// snapshot ever arrives. Grounded on the teacher's
// internal/config.LoadConfig (yaml.v3 over a plain struct).
package config

import (
	"sync/atomic"
	"time"

	"github.com/hostwatch/agent/internal/signalhandler/network"
)

// LogLevel mirrors spec §6's five recognized verbosities.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Snapshot is one immutable, fully-validated configuration image.
// Every field here corresponds to one recognized option from spec
// §6's enumerated list.
type Snapshot struct {
	LogLevel LogLevel

	TurnOffScrape         bool
	ScrapeInterval        time.Duration
	AfterglowPeriodMicros uint64
	EnableAfterglow       bool

	ProcessesListeningOnPort bool

	Filter network.FilterConfig
}

// Default returns the snapshot used before any runtime_filtering_configuration
// message has ever been applied, and as the bootstrap fallback when no
// config file is supplied.
func Default() Snapshot {
	return Snapshot{
		LogLevel:              LogLevelInfo,
		ScrapeInterval:        30 * time.Second,
		AfterglowPeriodMicros: 5_000_000,
		EnableAfterglow:       true,
	}
}

// Manager holds the current Snapshot behind an atomic pointer. Reads
// never block; writes (Publish) are serialized by the caller (the
// inbound config-message loop, transport.RunControlLoop, is the only
// writer, and spec §6 only requires atomicity of the swap itself, not
// mutual exclusion between writers).
type Manager struct {
	current atomic.Pointer[Snapshot]
}

// NewManager creates a Manager seeded with initial.
func NewManager(initial Snapshot) *Manager {
	m := &Manager{}
	m.current.Store(&initial)
	return m
}

// Load returns the current snapshot. Safe for concurrent use from any
// number of readers.
func (m *Manager) Load() Snapshot {
	return *m.current.Load()
}

// Publish validates candidate and, if valid, atomically swaps it in.
// On validation failure the previous snapshot is retained and the
// error is returned for the caller to relay as an ack error (spec §7
// taxonomy item 4: "rejected at publish time; previous snapshot
// retained; ack includes an error").
func (m *Manager) Publish(candidate Snapshot) error {
	if err := Validate(candidate); err != nil {
		return err
	}
	m.current.Store(&candidate)
	return nil
}

// FilterSource adapts a Manager into the network.FilterSource closure
// the network signal handler reads on every event.
func (m *Manager) FilterSource() network.FilterSource {
	return func() network.FilterConfig {
		return m.Load().Filter
	}
}
