// Package scan time-gates queries against the contact registry.
package scan

import (
	"io"
	"log/slog"

	"github.com/OCAP2/coil/pkg/core"
)

const timeEpsilon = 1e-9

// Query is a spatial request around an origin.
type Query struct {
	Origin  core.Position3D
	Radius  float64
	Exclude core.EntityID
}

// Registry is the external source of contacts. Returned contacts are only
// valid for the tick in which they were requested.
type Registry interface {
	Query(q Query) ([]core.Contact, error)
	Lookup(id core.EntityID) (core.Contact, bool)
}

// Scanner queries a Registry at most once per interval of simulation time.
type Scanner struct {
	registry Registry
	interval float64
	lastScan float64
	scanned  bool
	logger   *slog.Logger
}

// New returns a scanner. A nil registry yields empty scans.
func New(registry Registry, interval float64, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval < 0 {
		interval = 0
	}
	return &Scanner{registry: registry, interval: interval, logger: logger}
}

// Due reports whether a scan should run at now.
func (s *Scanner) Due(now float64) bool {
	return !s.scanned || now-s.lastScan >= s.interval-timeEpsilon
}

// Force makes the next call to Scan run regardless of the interval.
func (s *Scanner) Force() {
	s.scanned = false
}

// Scan queries the registry if due. ran is false when the interval has not elapsed.
// Registry failures produce an empty result and are retried on the next interval.
func (s *Scanner) Scan(now float64, q Query) (contacts []core.Contact, ran bool) {
	if !s.Due(now) {
		return nil, false
	}
	s.lastScan = now
	s.scanned = true
	if s.registry == nil {
		return nil, true
	}
	contacts, err := s.registry.Query(q)
	if err != nil {
		s.logger.Debug("contact query failed", "error", err)
		return nil, true
	}
	return contacts, true
}

// Lookup resolves a tracked contact directly, bypassing the scan cadence.
func (s *Scanner) Lookup(id core.EntityID) (core.Contact, bool) {
	if s.registry == nil || id == "" {
		return core.Contact{}, false
	}
	return s.registry.Lookup(id)
}
