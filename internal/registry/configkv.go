package registry

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vistralis/zen/internal/zenerr"
)

// GetConfig reads a single config value by key.
func (s *Store) GetConfig(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", zenerr.New(zenerr.NotFound, fmt.Sprintf("config key %q not set", key))
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config key %q: %w", key, err)
	}
	return value, nil
}

// SetConfig upserts a single config value.
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set config key %q: %w", key, err)
	}
	return nil
}

// ListConfig returns every stored config key/value pair as a map; its
// iteration order is not defined.
func (s *Store) ListConfig() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
