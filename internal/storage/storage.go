// Package storage defines the engagement recorder backend contract.
package storage

import (
	"time"

	"github.com/OCAP2/coil/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (assigns ID to the passed pointer where supported)
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordEngagementEvent(e *core.EngagementEvent) error
	RecordWeaponState(s *core.WeaponState) error
	RecordAssignment(a *core.AssignmentRecord) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the web frontend.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// WriteDurationProvider is an optional interface for backends that batch
// writes and can report the duration of the last batch.
type WriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}
