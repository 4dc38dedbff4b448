package store

import (
	"database/sql"
	"errors"

	"github.com/pavelanni/omrgrader/internal/model"
)

// SetMetadata upserts a key-value pair for a session.
func (s *Store) SetMetadata(sessionID, key, value string) error {
	return setMetadata(s.db, sessionID, key, value)
}

func setMetadata(ex execer, sessionID, key, value string) error {
	_, err := ex.Exec(
		`INSERT INTO session_metadata (session_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = ?`,
		sessionID, key, value, value,
	)
	return err
}

// GetMetadata returns the value for a session metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(sessionID, key string) (string, error) {
	return getMetadata(s.db, sessionID, key)
}

func getMetadata(q querier, sessionID, key string) (string, error) {
	var value string
	err := q.QueryRow(`SELECT value FROM session_metadata WHERE session_id = ? AND key = ?`, sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetExamInfo stores all ExamInfo fields as metadata rows.
func (s *Store) SetExamInfo(sessionID string, info model.ExamInfo) error {
	return setExamInfo(s.db, sessionID, info)
}

func setExamInfo(ex execer, sessionID string, info model.ExamInfo) error {
	for _, f := range examInfoFields(&info) {
		if err := setMetadata(ex, sessionID, f.key, *f.value); err != nil {
			return err
		}
	}
	return nil
}

// GetExamInfo reads all ExamInfo fields from metadata.
func (s *Store) GetExamInfo(sessionID string) (model.ExamInfo, error) {
	return getExamInfo(s.db, sessionID)
}

func getExamInfo(q querier, sessionID string) (model.ExamInfo, error) {
	var info model.ExamInfo
	for _, f := range examInfoFields(&info) {
		v, err := getMetadata(q, sessionID, f.key)
		if err != nil {
			return info, err
		}
		*f.value = v
	}
	return info, nil
}

type metadataField struct {
	key   string
	value *string
}

func examInfoFields(info *model.ExamInfo) []metadataField {
	return []metadataField{
		{"exam_id", &info.ExamID},
		{"subject", &info.Subject},
		{"date", &info.Date},
		{"difficulty", &info.Difficulty},
		{"time_spent", &info.TimeSpent},
		{"candidate", &info.Candidate},
	}
}
