// Package monitor periodically reports recorder and weapon status while a
// session is active.
package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/coil/internal/influx"
	"github.com/OCAP2/coil/internal/worker"
	"github.com/OCAP2/coil/pkg/core"
)

// StatsSource reports recorder counters.
type StatsSource interface {
	Stats() worker.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Recorder StatsSource
	Weapons  func() int
	Session  func() *core.Session
	// Influx is optional; performance points go to its performance bucket.
	Influx *influx.Manager
	// StatusFile is rewritten on every report when set.
	StatusFile string
	Interval   time.Duration
	Clock      func() time.Time
}

// Status is one program status report.
type Status struct {
	Time          time.Time `json:"time"`
	Session       string    `json:"session"`
	Weapons       int       `json:"weapons"`
	Pending       int       `json:"pending"`
	Dropped       uint64    `json:"dropped"`
	Events        uint64    `json:"events"`
	States        uint64    `json:"states"`
	LastDBWriteMs float64   `json:"lastDbWriteMs"`
}

// Fields returns the status as influx point fields.
func (s Status) Fields() map[string]any {
	return map[string]any{
		"weapons":          s.Weapons,
		"pending":          s.Pending,
		"dropped":          s.Dropped,
		"events":           s.Events,
		"states":           s.States,
		"last_db_write_ms": s.LastDBWriteMs,
	}
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{deps: deps, logger: deps.Logger}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and its pretty-printed form.
func (s *Service) GetProgramStatus() (string, Status) {
	status := Status{Time: s.deps.Clock()}
	if s.deps.Session != nil {
		if session := s.deps.Session(); session != nil {
			status.Session = session.Name
		}
	}
	if s.deps.Weapons != nil {
		status.Weapons = s.deps.Weapons()
	}
	if s.deps.Recorder != nil {
		stats := s.deps.Recorder.Stats()
		status.Pending = stats.Pending
		status.Dropped = stats.Dropped
		status.Events = stats.Events
		status.States = stats.States
		status.LastDBWriteMs = stats.LastDBWriteMs
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf(`{"error": %q}`, err))
	}
	return string(out), status
}

// Report writes one status report. It does nothing outside a session.
func (s *Service) Report() {
	if s.deps.Session == nil || s.deps.Session() == nil {
		return
	}
	text, status := s.GetProgramStatus()

	if s.deps.StatusFile != "" {
		if err := os.WriteFile(s.deps.StatusFile, []byte(text+"\n"), 0644); err != nil {
			s.logger.Error("Error writing status file", "error", err, "path", s.deps.StatusFile)
		}
	}

	s.logger.Debug("Program status",
		"session", status.Session,
		"weapons", status.Weapons,
		"pending", status.Pending,
		"dropped", status.Dropped,
		"lastDbWriteMs", status.LastDBWriteMs,
	)
	if status.Dropped > 0 {
		s.logger.Warn("Recorder has dropped cycles", "dropped", status.Dropped)
	}

	if s.deps.Influx != nil && s.deps.Influx.Enabled() {
		point := influx.PerformancePoint(status.Session, status.Time, status.Fields())
		if err := s.deps.Influx.WritePoint(influx.BucketPerformance, point); err != nil {
			s.logger.Error("Error writing performance point", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
