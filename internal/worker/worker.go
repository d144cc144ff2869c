// Package worker records coordinator cycles into a storage backend on a
// background goroutine so the host tick never waits on I/O.
package worker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/coil/internal/channel"
	"github.com/OCAP2/coil/internal/influx"
	"github.com/OCAP2/coil/internal/storage"
	"github.com/OCAP2/coil/internal/weapon"
	"github.com/OCAP2/coil/pkg/core"
)

// ErrClosed is returned for session changes submitted after Close.
var ErrClosed = errors.New("recorder closed")

// ErrQueueFull is returned when a session change cannot be queued.
var ErrQueueFull = errors.New("recorder queue full")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// Influx mirrors events and snapshots when set and connected.
	Influx *influx.Manager
	// StateInterval is the simulation time between weapon state snapshots.
	// Zero snapshots every cycle.
	StateInterval float64
	QueueSize     int
}

// Cycle is one coordinator tick handed to the recorder.
type Cycle struct {
	SimTime  float64
	Wall     time.Time
	Report   weapon.CycleReport
	Statuses []weapon.Status
}

type job struct {
	cycle *Cycle
	start *core.Session
	end   bool
	done  chan error
}

// Manager serializes session changes and cycle records onto a backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	logger  *slog.Logger
	jobs    channel.Channel[job]

	// owned by the worker goroutine
	session   string
	lastState float64
	sampled   bool

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
	events  atomic.Uint64
	states  atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = 1000
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		logger:  deps.Logger,
		jobs:    channel.New[job](deps.QueueSize),
	}
}

// Start launches the recording goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for j := range m.jobs.Receive() {
			m.run(j)
		}
	}()
}

// Close stops accepting work and waits for queued jobs to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.jobs.Close()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) submit(j job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	return m.jobs.TrySend(j)
}

// StartSession queues the session start behind pending cycles and waits for the backend.
func (m *Manager) StartSession(s *core.Session) error {
	return m.wait(job{start: s})
}

// EndSession flushes pending cycles and ends the backend session.
func (m *Manager) EndSession() error {
	return m.wait(job{end: true})
}

func (m *Manager) wait(j job) error {
	j.done = make(chan error, 1)
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !m.submit(j) {
		return ErrQueueFull
	}
	return <-j.done
}

// Submit queues a cycle without blocking. It returns false when the cycle was dropped.
func (m *Manager) Submit(c Cycle) bool {
	if !m.submit(job{cycle: &c}) {
		if m.dropped.Add(1) == 1 {
			m.logger.Warn("Recorder queue full, dropping cycles")
		}
		return false
	}
	return true
}

func (m *Manager) run(j job) {
	switch {
	case j.start != nil:
		err := m.backend.StartSession(j.start)
		if err == nil {
			m.session = j.start.Name
			m.sampled = false
		}
		j.done <- err
	case j.end:
		err := m.backend.EndSession()
		m.session = ""
		j.done <- err
	case j.cycle != nil:
		m.Record(*j.cycle)
	}
}

// Record writes one cycle synchronously: engagement events, applied turret
// assignments and, every StateInterval, a snapshot of each armed weapon.
func (m *Manager) Record(c Cycle) {
	for _, e := range c.Report.Events() {
		if err := m.backend.RecordEngagementEvent(&e); err != nil {
			m.logger.Debug("Failed to record engagement event", "kind", e.Kind, "error", err)
			continue
		}
		m.events.Add(1)
		m.mirror(func(im *influx.Manager) error { return im.WriteEngagementEvent(m.session, &e) })
	}

	for _, o := range c.Report.Overrides {
		if !o.Result.Applied {
			continue
		}
		for _, order := range o.Result.Orders {
			a := core.AssignmentRecord{
				Time:         c.Wall,
				SimTime:      c.SimTime,
				PlatformID:   o.PlatformID,
				TurretID:     order.TurretID,
				TargetID:     order.TargetID,
				HardPriority: order.Forced,
			}
			if err := m.backend.RecordAssignment(&a); err != nil {
				m.logger.Debug("Failed to record assignment", "turret", order.TurretID, "error", err)
			}
		}
	}

	if m.sampled && c.SimTime-m.lastState < m.deps.StateInterval {
		return
	}
	m.sampled = true
	m.lastState = c.SimTime
	for _, st := range c.Statuses {
		if st.Role == "inert" {
			continue
		}
		s := core.WeaponState{
			Time:       c.Wall,
			SimTime:    c.SimTime,
			PlatformID: st.PlatformID,
			WeaponID:   st.WeaponID,
			Primary:    st.Role == "primary",
			State:      st.State,
			TargetID:   st.TargetID,
			Reserve:    st.Reserve,
			Capacity:   st.Capacity,
			AutoFire:   st.AutoFire,
		}
		if err := m.backend.RecordWeaponState(&s); err != nil {
			m.logger.Debug("Failed to record weapon state", "weapon", st.WeaponID, "error", err)
			continue
		}
		m.states.Add(1)
		m.mirror(func(im *influx.Manager) error { return im.WriteWeaponState(m.session, &s) })
	}
}

func (m *Manager) mirror(write func(*influx.Manager) error) {
	if m.deps.Influx == nil || !m.deps.Influx.Enabled() {
		return
	}
	if err := write(m.deps.Influx); err != nil {
		m.logger.Debug("Failed to mirror to InfluxDB", "error", err)
	}
}

// Stats is a snapshot of recorder counters.
type Stats struct {
	Pending       int
	Dropped       uint64
	Events        uint64
	States        uint64
	LastDBWriteMs float64
}

// Stats returns the current recorder counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Pending:       m.jobs.Len(),
		Dropped:       m.dropped.Load(),
		Events:        m.events.Load(),
		States:        m.states.Load(),
		LastDBWriteMs: float64(m.GetLastDBWriteDuration().Microseconds()) / 1000,
	}
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.WriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}
