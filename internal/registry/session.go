package registry

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/vistralis/zen/internal/zenerr"
)

// StartRecordingSession begins a template-capture session rooted at
// envPath. At most one recording session exists globally: starting a new
// one clears any prior session first.
func (s *Store) StartRecordingSession(clock clockwork.Clock, templateID int64, envPath string) (RecordingSession, error) {
	if _, err := s.db.Exec(`DELETE FROM recording_session`); err != nil {
		return RecordingSession{}, fmt.Errorf("failed to clear prior recording session: %w", err)
	}

	now := clock.Now()
	_, err := s.db.Exec(`
		INSERT INTO recording_session (template_id, env_path, start_time) VALUES (?, ?, ?)
	`, templateID, envPath, now)
	if err != nil {
		return RecordingSession{}, fmt.Errorf("failed to start recording session: %w", err)
	}
	return s.ActiveRecordingSession()
}

// ActiveRecordingSession returns the single in-progress recording session,
// if any.
func (s *Store) ActiveRecordingSession() (RecordingSession, error) {
	row := s.db.QueryRow(`SELECT id, template_id, env_path, start_time FROM recording_session LIMIT 1`)
	var rs RecordingSession
	err := row.Scan(&rs.ID, &rs.TemplateID, &rs.EnvPath, &rs.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return RecordingSession{}, zenerr.New(zenerr.NotFound, "no recording session is active")
	}
	if err != nil {
		return RecordingSession{}, fmt.Errorf("failed to read active recording session: %w", err)
	}
	return rs, nil
}

// ClearRecordingSession stops any in-progress recording session. It is not
// an error to call this when none is active.
func (s *Store) ClearRecordingSession() error {
	if _, err := s.db.Exec(`DELETE FROM recording_session`); err != nil {
		return fmt.Errorf("failed to clear recording session: %w", err)
	}
	return nil
}
