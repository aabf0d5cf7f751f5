package registry

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// AddNote inserts a caller-supplied-uuid note, optionally scoped to an
// environment and tagged.
func (s *Store) AddNote(clock clockwork.Clock, uuid, projectPath string, envName *string, message string, tag *string) (Note, error) {
	var envID *int64
	if envName != nil {
		env, err := s.LookupEnvironmentByName(*envName)
		if err != nil {
			return Note{}, err
		}
		envID = &env.ID
	}

	now := clock.Now()
	_, err := s.db.Exec(`
		INSERT INTO notes (uuid, project_path, env_id, message, tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid, projectPath, envID, message, tag, now)
	if err != nil {
		return Note{}, fmt.Errorf("failed to add note: %w", err)
	}
	return Note{UUID: uuid, ProjectPath: projectPath, EnvID: envID, Message: message, Tag: tag, CreatedAt: now}, nil
}

// ListNotes returns notes matching an optional project path and/or
// environment filter, newest first.
func (s *Store) ListNotes(projectPath, envName *string) ([]Note, error) {
	query := `SELECT uuid, project_path, env_id, message, tag, created_at FROM notes WHERE 1=1`
	var args []any
	if projectPath != nil {
		query += ` AND project_path = ?`
		args = append(args, *projectPath)
	}
	if envName != nil {
		env, err := s.LookupEnvironmentByName(*envName)
		if err != nil {
			return nil, err
		}
		query += ` AND env_id = ?`
		args = append(args, env.ID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.UUID, &n.ProjectPath, &n.EnvID, &n.Message, &n.Tag, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RemoveNote deletes a note by exact uuid or by uuid prefix. An exact match
// wins if both would apply.
func (s *Store) RemoveNote(uuidOrPrefix string) error {
	res, err := s.db.Exec(`DELETE FROM notes WHERE uuid = ?`, uuidOrPrefix)
	if err != nil {
		return fmt.Errorf("failed to remove note %q: %w", uuidOrPrefix, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	res, err = s.db.Exec(`DELETE FROM notes WHERE uuid LIKE ? || '%'`, uuidOrPrefix)
	if err != nil {
		return fmt.Errorf("failed to remove note with prefix %q: %w", uuidOrPrefix, err)
	}
	return requireRowsAffected(res, "note", uuidOrPrefix)
}
