package registry

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
)

// AddLabel attaches label (lowercased) to an environment. Idempotent via
// the (env_id, label) uniqueness constraint: inserting the same pair twice
// leaves exactly one row.
func (s *Store) AddLabel(clock clockwork.Clock, envName, label string) error {
	env, err := s.LookupEnvironmentByName(envName)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO labels (env_id, label, created_at) VALUES (?, ?, ?)
		ON CONFLICT (env_id, label) DO NOTHING
	`, env.ID, strings.ToLower(label), clock.Now())
	if err != nil {
		return fmt.Errorf("failed to add label %q to %q: %w", label, envName, err)
	}
	return nil
}

// RemoveLabel detaches label from an environment, if present.
func (s *Store) RemoveLabel(envName, label string) error {
	env, err := s.LookupEnvironmentByName(envName)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM labels WHERE env_id = ? AND label = ?`, env.ID, strings.ToLower(label))
	if err != nil {
		return fmt.Errorf("failed to remove label %q from %q: %w", label, envName, err)
	}
	return nil
}

// ListLabels returns every label attached to an environment.
func (s *Store) ListLabels(envName string) ([]string, error) {
	env, err := s.LookupEnvironmentByName(envName)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT label FROM labels WHERE env_id = ? ORDER BY label`, env.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels for %q: %w", envName, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out = append(out, label)
	}
	return out, rows.Err()
}

// EnvironmentsWithLabel returns every environment name tagged with label.
func (s *Store) EnvironmentsWithLabel(label string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT e.name FROM environments e
		JOIN labels l ON l.env_id = e.id
		WHERE l.label = ?
		ORDER BY e.name
	`, strings.ToLower(label))
	if err != nil {
		return nil, fmt.Errorf("failed to list environments with label %q: %w", label, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// LabelsByEnvironment returns every (env name -> labels) pairing globally.
func (s *Store) LabelsByEnvironment() (map[string][]string, error) {
	rows, err := s.db.Query(`
		SELECT e.name, l.label FROM labels l
		JOIN environments e ON e.id = l.env_id
		ORDER BY e.name, l.label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels grouped by environment: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, err
		}
		out[name] = append(out[name], label)
	}
	return out, rows.Err()
}
