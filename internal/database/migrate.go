package database

import (
	"fmt"

	"github.com/OCAP2/coil/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const copyBatchSize = 500

// CopySessions copies every session of src and its recorded rows into dst
// inside one transaction. dst assigns new ids; rows follow their session.
func CopySessions(src, dst *gorm.DB, log zerolog.Logger) (int, error) {
	var sessions []model.Session
	if err := src.Order("id").Find(&sessions).Error; err != nil {
		return 0, fmt.Errorf("error reading sessions: %w", err)
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		for _, s := range sessions {
			from := s.ID
			s.ID = 0
			if err := tx.Omit(clause.Associations).Create(&s).Error; err != nil {
				return fmt.Errorf("error copying session %d: %w", from, err)
			}

			events, err := copyRows(src, tx, from, func(r *model.EngagementEvent) { r.ID, r.SessionID = 0, s.ID })
			if err != nil {
				return fmt.Errorf("error copying engagement events of session %d: %w", from, err)
			}
			states, err := copyRows(src, tx, from, func(r *model.WeaponState) { r.ID, r.SessionID = 0, s.ID })
			if err != nil {
				return fmt.Errorf("error copying weapon states of session %d: %w", from, err)
			}
			assignments, err := copyRows(src, tx, from, func(r *model.AssignmentRecord) { r.ID, r.SessionID = 0, s.ID })
			if err != nil {
				return fmt.Errorf("error copying assignments of session %d: %w", from, err)
			}

			log.Info().
				Uint("from", from).
				Uint("to", s.ID).
				Int("events", events).
				Int("states", states).
				Int("assignments", assignments).
				Msg("Copied session")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func copyRows[M any](src, dst *gorm.DB, sessionID uint, reset func(*M)) (int, error) {
	var rows []M
	if err := src.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i := range rows {
		reset(&rows[i])
	}
	if err := dst.Omit(clause.Associations).CreateInBatches(rows, copyBatchSize).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}
