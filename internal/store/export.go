package store

import (
	"fmt"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"
)

// Snapshot is everything stored for one session, read in a single transaction.
type Snapshot struct {
	Session   model.ReviewSession
	Key       []grading.KeyEntry
	Responses grading.Responses
	Overrides []model.OverrideEvent
}

// LoadSnapshot reads a session with its key, current responses and audit log.
func (s *Store) LoadSnapshot(sessionID string) (Snapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var snap Snapshot
	if snap.Session, err = getSession(tx, sessionID); err != nil {
		return Snapshot{}, err
	}
	if snap.Key, err = getKey(tx, sessionID); err != nil {
		return Snapshot{}, err
	}
	if snap.Responses, err = getResponses(tx, sessionID); err != nil {
		return Snapshot{}, err
	}
	if snap.Overrides, err = listOverrides(tx, sessionID); err != nil {
		return Snapshot{}, err
	}
	return snap, tx.Commit()
}
