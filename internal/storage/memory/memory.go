// Package memory implements storage.Backend by keeping a session in memory
// and exporting it as JSON when the session ends.
package memory

import (
	"sync"
	"time"

	"github.com/OCAP2/coil/internal/config"
	"github.com/OCAP2/coil/pkg/core"
)

// WeaponRecord groups a weapon instance with its state history
type WeaponRecord struct {
	PlatformID core.EntityID
	WeaponID   core.EntityID
	States     []core.WeaponState
}

type weaponKey struct {
	platform core.EntityID
	weapon   core.EntityID
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	endTime time.Time

	weapons     map[weaponKey]*WeaponRecord
	weaponOrder []weaponKey
	events      []core.EngagementEvent
	assignments []core.AssignmentRecord

	idCounter      uint
	lastExportPath string
	lastMeta       core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		weapons: make(map[weaponKey]*WeaponRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	b.session = s
	b.endTime = time.Time{}

	// Reset all collections
	b.weapons = make(map[weaponKey]*WeaponRecord)
	b.weaponOrder = nil
	b.events = nil
	b.assignments = nil

	return nil
}

// EndSession finalizes and exports the session data. Ending without a
// session is a no-op.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.endTime = time.Now()
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordEngagementEvent records a weapon event
func (b *Backend) RecordEngagementEvent(e *core.EngagementEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	b.events = append(b.events, *e)
	return nil
}

// RecordWeaponState records a weapon state snapshot
func (b *Backend) RecordWeaponState(s *core.WeaponState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}

	key := weaponKey{platform: s.PlatformID, weapon: s.WeaponID}
	record, ok := b.weapons[key]
	if !ok {
		record = &WeaponRecord{PlatformID: s.PlatformID, WeaponID: s.WeaponID}
		b.weapons[key] = record
		b.weaponOrder = append(b.weaponOrder, key)
	}
	record.States = append(record.States, *s)
	return nil
}

// RecordAssignment records a turret order
func (b *Backend) RecordAssignment(a *core.AssignmentRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	b.assignments = append(b.assignments, *a)
	return nil
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
