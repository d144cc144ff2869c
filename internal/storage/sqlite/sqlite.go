// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are the in-memory DB
// and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/coil/internal/database"
	"github.com/OCAP2/coil/internal/storage/postgres"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval  time.Duration
	DumpPath      string // Path for periodic VACUUM INTO dumps
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*postgres.Backend
	cfg      Config
	logger   *slog.Logger
	dbLogger zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger, dbLogger zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite("", dbLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := postgres.New(postgres.Dependencies{
		DB:            db,
		Logger:        logger,
		DBLogger:      dbLogger,
		FlushInterval: cfg.FlushInterval,
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend:  gormBackend,
		cfg:      cfg,
		logger:   logger,
		dbLogger: dbLogger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a last dump so the final rows reach the disk.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.Dump()
}

// Dump writes a point-in-time snapshot of the database to DumpPath.
func (b *Backend) Dump() error {
	return database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath, b.dbLogger)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.logger.Error("Error dumping to disk", "error", err)
			} else {
				b.logger.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
