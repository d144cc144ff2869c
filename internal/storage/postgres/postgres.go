// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/coil/internal/database"
	"github.com/OCAP2/coil/internal/model"
	"github.com/OCAP2/coil/internal/model/convert"
	"github.com/OCAP2/coil/internal/queue"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// queueLimit bounds each write queue while the database is unreachable.
const queueLimit = 100_000

// ErrNoSession is returned when recording without a started session.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as is when set; otherwise Init connects to postgres.
	DB            *gorm.DB
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
	// RecordPerformance adds a coil_performances row per write cycle.
	RecordPerformance bool
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	EngagementEvents *queue.Queue[model.EngagementEvent]
	WeaponStates     *queue.Queue[model.WeaponState]
	Assignments      *queue.Queue[model.AssignmentRecord]
}

func newQueues() *queues {
	return &queues{
		EngagementEvents: queue.New[model.EngagementEvent](queueLimit),
		WeaponStates:     queue.New[model.WeaponState](queueLimit),
		Assignments:      queue.New[model.AssignmentRecord](queueLimit),
	}
}

func (q *queues) dropped() uint64 {
	return q.EngagementEvents.Dropped() + q.WeaponStates.Dropped() + q.Assignments.Dropped()
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	logger    *slog.Logger
	queues    *queues
	sessionID atomic.Uint64
	lastWrite atomic.Int64

	// writeMu serializes write cycles between the writer goroutine and EndSession.
	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = 2 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{
		deps:   deps,
		logger: logger,
		queues: newQueues(),
	}
}

// DB returns the connection in use, nil before Init.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.DBLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}

	if err := database.Migrate(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return nil
}

// StartSession inserts the session row and stamps later rows with its ID.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		return nil
	}

	// rows still queued belong to the previous session
	b.flush()

	gormSession := convert.CoreToSession(*s)
	gormSession.ID = 0
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = gormSession.ID
	b.sessionID.Store(uint64(gormSession.ID))
	b.logger.Info("Session started", "sessionId", gormSession.ID, "name", s.Name)
	return nil
}

// EndSession flushes the queues and stamps the session end time.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 || b.deps.DB == nil {
		return nil
	}

	b.flush()
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error
	b.sessionID.Store(0)
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", id, err)
	}
	b.logger.Info("Session ended", "sessionId", id)
	return nil
}

// RecordEngagementEvent converts and queues an engagement event.
func (b *Backend) RecordEngagementEvent(e *core.EngagementEvent) error {
	id, err := b.session()
	if err != nil {
		return err
	}
	b.queues.EngagementEvents.Push(convert.CoreToEngagementEvent(*e, id))
	return nil
}

// RecordWeaponState converts and queues a weapon state.
func (b *Backend) RecordWeaponState(s *core.WeaponState) error {
	id, err := b.session()
	if err != nil {
		return err
	}
	b.queues.WeaponStates.Push(convert.CoreToWeaponState(*s, id))
	return nil
}

// RecordAssignment converts and queues a turret assignment.
func (b *Backend) RecordAssignment(a *core.AssignmentRecord) error {
	id, err := b.session()
	if err != nil {
		return err
	}
	b.queues.Assignments.Push(convert.CoreToAssignment(*a, id))
	return nil
}

func (b *Backend) session() (uint, error) {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return 0, ErrNoSession
	}
	return id, nil
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueLengths reports the rows waiting for the next write cycle.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		EngagementEvents: uint16(min(b.queues.EngagementEvents.Len(), 65535)),
		WeaponStates:     uint16(min(b.queues.WeaponStates.Len(), 65535)),
		Assignments:      uint16(min(b.queues.Assignments.Len(), 65535)),
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are put back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error writing batch", "table", name, "rows", len(items), "error", err)
		tx.Rollback()
		q.Requeue(items)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing batch", "table", name, "rows", len(items), "error", err)
		q.Requeue(items)
	}
}

// flush runs one write cycle.
func (b *Backend) flush() {
	if b.deps.DB == nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	lengths := b.QueueLengths()
	start := time.Now()
	writeQueue(b.deps.DB, b.queues.EngagementEvents, "engagement events", b.logger)
	writeQueue(b.deps.DB, b.queues.WeaponStates, "weapon states", b.logger)
	writeQueue(b.deps.DB, b.queues.Assignments, "assignments", b.logger)
	elapsed := time.Since(start)
	b.lastWrite.Store(int64(elapsed))

	id := uint(b.sessionID.Load())
	if !b.deps.RecordPerformance || id == 0 {
		return
	}
	perf := model.CoilPerformance{
		Time:                time.Now(),
		SessionID:           id,
		WriteQueueLengths:   lengths,
		DroppedRows:         b.queues.dropped(),
		LastWriteDurationMs: float32(elapsed.Seconds() * 1000),
	}
	if err := b.deps.DB.Create(&perf).Error; err != nil {
		b.logger.Warn("Error writing performance row", "error", err)
	}
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.flush()
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
