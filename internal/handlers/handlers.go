// Package handlers binds extension commands to the weapon coordinator, the
// host scene caches and the engagement recorder.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/coil/internal/cache"
	"github.com/OCAP2/coil/internal/dispatcher"
	"github.com/OCAP2/coil/internal/geo"
	"github.com/OCAP2/coil/internal/mission"
	"github.com/OCAP2/coil/internal/parser"
	"github.com/OCAP2/coil/internal/weapon"
	"github.com/OCAP2/coil/internal/worker"
	"github.com/OCAP2/coil/pkg/core"
)

// ErrNoSession is returned when ending a session that was never started.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Coordinator *weapon.Coordinator
	Collector   *Collector
	Contacts    *cache.ContactCache
	Platforms   *cache.NetworkCache
	Scene       *geo.Scene
	Parser      *parser.Parser
	Mission     *mission.Context
	// Recorder is optional; without it sessions are tracked but nothing is stored.
	Recorder *worker.Manager
	// OnSessionEnd runs after a session was ended and flushed.
	OnSessionEnd func(*core.Session)

	ExtensionVersion string
	BuildDate        string
	Clock            func() time.Time
}

// TurretCommand is an applied turret order addressed to the host.
type TurretCommand struct {
	PlatformID core.EntityID `json:"platformId"`
	TurretID   core.EntityID `json:"turretId"`
	TargetID   core.EntityID `json:"targetId"`
	Forced     bool          `json:"forced"`
}

// TickResult is what the host must carry out after a tick.
type TickResult struct {
	Damage   []core.Damage             `json:"damage"`
	Turrets  []TurretCommand           `json:"turrets"`
	Resupply []core.EntityID           `json:"resupply"`
	Consumed map[core.EntityID]float64 `json:"consumed,omitempty"`
}

// Service provides the command handlers. The coordinator is not safe for
// concurrent use, so every handler touching it holds mu.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Collector == nil {
		deps.Collector = NewCollector()
	}
	if deps.Mission == nil {
		deps.Mission = mission.NewContext()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger, nil)
	}
	return &Service{deps: deps, logger: deps.Logger}
}

// Register adds every command handler to the dispatcher.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", s.handleVersion)

	d.Register(":COIL:SESSION:START:", s.handleSessionStart, dispatcher.Logged())
	d.Register(":COIL:SESSION:END:", s.handleSessionEnd, dispatcher.Logged())
	d.Register(":COIL:AUTHORITY:", s.handleAuthority, dispatcher.Logged())

	d.Register(":COIL:MOUNT:", s.handleMount, dispatcher.Logged())
	d.Register(":COIL:UNMOUNT:", s.handleUnmount, dispatcher.Logged())
	d.Register(":COIL:PLATFORM:", s.handlePlatform, dispatcher.Logged())
	d.Register(":COIL:CONTACTS:", s.handleContacts, dispatcher.Logged())
	d.Register(":COIL:OBSTACLE:", s.handleObstacle, dispatcher.Logged())
	d.Register(":COIL:OBSTACLE:REMOVE:", s.handleObstacleRemove, dispatcher.Logged())

	d.Register(":COIL:FIRE:", s.handleFire, dispatcher.Logged())
	d.Register(":COIL:AUTOFIRE:TOGGLE:", s.handleAutoFireToggle, dispatcher.Logged())
	d.Register(":COIL:AUTOFIRE:SET:", s.handleAutoFireSet, dispatcher.Logged())
	d.Register(":COIL:RESUPPLY:", s.handleResupply, dispatcher.Logged())
	d.Register(":COIL:RESTORE:", s.handleRestore, dispatcher.Logged())
	d.Register(":COIL:TURRET:", s.handleTurret, dispatcher.Logged())
	d.Register(":COIL:TURRET:OBSERVE:", s.handleTurretObserve, dispatcher.Logged())

	d.Register(":COIL:TICK:", s.handleTick, dispatcher.Logged())
	d.Register(":COIL:STATUS:", s.handleStatus, dispatcher.Logged())
}

func (s *Service) handleVersion(dispatcher.Event) (any, error) {
	return []string{s.deps.ExtensionVersion, s.deps.BuildDate}, nil
}

func (s *Service) handleSessionStart(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParseSession(e.Args)
	if err != nil {
		return nil, err
	}
	session := &core.Session{
		Name:             p.Name,
		World:            p.World,
		StartTime:        s.deps.Clock(),
		ExtensionVersion: s.deps.ExtensionVersion,
	}

	if prev := s.deps.Mission.GetSession(); prev != nil {
		s.logger.Warn("Session started while another was active, ending it", "previous", prev.Name)
		if err := s.endSession(prev); err != nil {
			s.logger.Error("Failed to end previous session", "error", err)
		}
	}

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.StartSession(session); err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}
	}
	s.deps.Mission.SetSession(session)
	s.logger.Info("Session started", "name", session.Name, "world", session.World, "id", session.ID)
	return session.ID, nil
}

func (s *Service) handleSessionEnd(dispatcher.Event) (any, error) {
	session := s.deps.Mission.GetSession()
	if session == nil {
		return nil, ErrNoSession
	}
	return nil, s.endSession(session)
}

func (s *Service) endSession(session *core.Session) error {
	s.deps.Mission.SetSession(nil)
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.EndSession(); err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
	}
	s.logger.Info("Session ended", "name", session.Name)
	if s.deps.OnSessionEnd != nil {
		s.deps.OnSessionEnd(session)
	}
	return nil
}

func (s *Service) handleAuthority(e dispatcher.Event) (any, error) {
	v, err := s.deps.Parser.ParseBool(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Coordinator.SetAuthoritative(v)
	return nil, nil
}

func (s *Service) handleMount(e dispatcher.Event) (any, error) {
	m, err := s.deps.Parser.ParseMount(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	role := s.deps.Coordinator.Mount(m.Platform, m.Instance, m.Network)
	if m.Platform != "" && m.Network != "" {
		s.deps.Platforms.Set(m.Platform, m.Network)
	}
	return role.String(), nil
}

func (s *Service) handleUnmount(e dispatcher.Event) (any, error) {
	id, err := s.deps.Parser.ParseInstance(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.Unmount(id)
}

func (s *Service) handlePlatform(e dispatcher.Event) (any, error) {
	u, err := s.deps.Parser.ParsePlatform(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !u.Alive {
		n := s.deps.Coordinator.RemovePlatform(u.ID)
		s.deps.Platforms.Delete(u.ID)
		s.deps.Scene.RemovePlatform(u.ID)
		s.logger.Info("Platform destroyed", "platform", u.ID, "instances", n)
		return n, nil
	}

	s.deps.Coordinator.UpdatePlatform(u.ID, u.Network, u.Pose)
	if u.Network != "" {
		s.deps.Platforms.Set(u.ID, u.Network)
	}
	s.deps.Scene.SetPlatform(u.ID, u.Pose.Position)
	return nil, nil
}

func (s *Service) handleContacts(e dispatcher.Event) (any, error) {
	updates, err := s.deps.Parser.ParseContacts(e.Args)
	if err != nil {
		return nil, err
	}
	records := make([]cache.Record, len(updates))
	for i, u := range updates {
		records[i] = cache.Record{Contact: u.Contact, Network: u.Network}
	}
	s.deps.Contacts.Replace(records)
	return s.deps.Contacts.Len(), nil
}

func (s *Service) handleObstacle(e dispatcher.Event) (any, error) {
	o, err := s.deps.Parser.ParseObstacle(e.Args)
	if err != nil {
		return nil, err
	}
	s.deps.Scene.AddObstacle(o)
	return s.deps.Scene.Obstacles(), nil
}

func (s *Service) handleObstacleRemove(e dispatcher.Event) (any, error) {
	id, err := s.deps.Parser.ParseInstance(e.Args)
	if err != nil {
		return nil, err
	}
	return s.deps.Scene.RemoveObstacle(id), nil
}

func (s *Service) handleFire(e dispatcher.Event) (any, error) {
	f, err := s.deps.Parser.ParseFire(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.Fire(f.Platform, f.Target)
}

func (s *Service) handleAutoFireToggle(e dispatcher.Event) (any, error) {
	id, _, err := s.deps.Parser.ParsePlatformID(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.ToggleAutoFire(id)
}

func (s *Service) handleAutoFireSet(e dispatcher.Event) (any, error) {
	id, v, err := s.deps.Parser.ParseAutoFireSet(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.SetAutoFire(id, v)
}

func (s *Service) handleResupply(e dispatcher.Event) (any, error) {
	id, _, err := s.deps.Parser.ParsePlatformID(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Coordinator.Resupply(id, s.deps.Mission.SimTime())
}

func (s *Service) handleRestore(e dispatcher.Event) (any, error) {
	id, reserve, err := s.deps.Parser.ParseRestore(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.Restore(id, reserve)
}

func (s *Service) handleTurret(e dispatcher.Event) (any, error) {
	t, err := s.deps.Parser.ParseTurrets(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range t.IDs {
		s.deps.Coordinator.AttachTurret(t.Platform, id)
	}
	return len(t.IDs), nil
}

func (s *Service) handleTurretObserve(e dispatcher.Event) (any, error) {
	o, err := s.deps.Parser.ParseTurretObserve(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.deps.Coordinator.ObserveTurret(o.Platform, o.Turret, o.Target)
}

func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	t, err := s.deps.Parser.ParseTick(e.Args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.deps.Mission.SetSimTime(t.SimTime)
	report := s.deps.Coordinator.Tick(t.SimTime, t.DT)
	var statuses []weapon.Status
	if s.deps.Recorder != nil && s.deps.Mission.GetSession() != nil {
		statuses = s.deps.Coordinator.Statuses()
	}
	s.mu.Unlock()

	damage, consumed, resupply := s.deps.Collector.drain()
	result := TickResult{
		Damage:   damage,
		Resupply: resupply,
		Consumed: consumed,
	}
	for _, o := range report.Overrides {
		if !o.Result.Applied {
			continue
		}
		for _, order := range o.Result.Orders {
			result.Turrets = append(result.Turrets, TurretCommand{
				PlatformID: o.PlatformID,
				TurretID:   order.TurretID,
				TargetID:   order.TargetID,
				Forced:     order.Forced,
			})
		}
	}
	if len(result.Consumed) == 0 {
		result.Consumed = nil
	}
	// the host expects arrays, never null
	if result.Damage == nil {
		result.Damage = []core.Damage{}
	}
	if result.Turrets == nil {
		result.Turrets = []TurretCommand{}
	}
	if result.Resupply == nil {
		result.Resupply = []core.EntityID{}
	}

	if statuses != nil {
		s.deps.Recorder.Submit(worker.Cycle{
			SimTime:  t.SimTime,
			Wall:     s.deps.Clock(),
			Report:   report,
			Statuses: statuses,
		})
	}
	return result, nil
}

func (s *Service) handleStatus(e dispatcher.Event) (any, error) {
	id, _, err := s.deps.Parser.ParsePlatformID(e.Args)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []weapon.Status
	for _, st := range s.deps.Coordinator.Statuses() {
		if st.PlatformID == id {
			out = append(out, st)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("status %s: %w", id, weapon.ErrUnknownPlatform)
	}
	return out, nil
}

// Weapons returns the number of mounted weapon instances.
func (s *Service) Weapons() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Coordinator.Weapons()
}

// Session returns the active session, or nil.
func (s *Service) Session() *core.Session {
	return s.deps.Mission.GetSession()
}
