package registry

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/vistralis/zen/internal/zenerr"
)

// RegisterEnvironment upserts an environment by name: if name already
// exists its path/python_version/updated_at are refreshed, otherwise a new
// row is inserted.
func (s *Store) RegisterEnvironment(clock clockwork.Clock, name, path, pythonVersion string) (Environment, error) {
	now := clock.Now()
	_, err := s.db.Exec(`
		INSERT INTO environments (name, path, python_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			path = excluded.path,
			python_version = excluded.python_version,
			updated_at = excluded.updated_at
	`, name, path, pythonVersion, now, now)
	if err != nil {
		return Environment{}, fmt.Errorf("failed to register environment %q: %w", name, err)
	}
	return s.LookupEnvironmentByName(name)
}

func (s *Store) scanEnvironment(row interface {
	Scan(dest ...any) error
}) (Environment, error) {
	var e Environment
	if err := row.Scan(&e.ID, &e.Name, &e.Path, &e.PythonVersion, &e.CreatedAt, &e.UpdatedAt, &e.IsFavorite); err != nil {
		return Environment{}, err
	}
	return e, nil
}

const environmentColumns = `id, name, path, python_version, created_at, updated_at, is_favorite`

// ListEnvironments returns every registered environment, ordered by name.
func (s *Store) ListEnvironments() ([]Environment, error) {
	rows, err := s.db.Query(`SELECT ` + environmentColumns + ` FROM environments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	var out []Environment
	for rows.Next() {
		e, err := s.scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LookupEnvironmentByName finds an environment by its unique name.
func (s *Store) LookupEnvironmentByName(name string) (Environment, error) {
	row := s.db.QueryRow(`SELECT `+environmentColumns+` FROM environments WHERE name = ?`, name)
	e, err := s.scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Environment{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("environment %q not found", name))
	}
	if err != nil {
		return Environment{}, fmt.Errorf("failed to look up environment %q: %w", name, err)
	}
	return e, nil
}

// LookupEnvironmentByID finds an environment by its numeric id.
func (s *Store) LookupEnvironmentByID(id int64) (Environment, error) {
	row := s.db.QueryRow(`SELECT `+environmentColumns+` FROM environments WHERE id = ?`, id)
	e, err := s.scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Environment{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("environment id %d not found", id))
	}
	if err != nil {
		return Environment{}, fmt.Errorf("failed to look up environment id %d: %w", id, err)
	}
	return e, nil
}

// LookupEnvironmentByPath finds an environment by its unique filesystem path.
func (s *Store) LookupEnvironmentByPath(path string) (Environment, error) {
	row := s.db.QueryRow(`SELECT `+environmentColumns+` FROM environments WHERE path = ?`, path)
	e, err := s.scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Environment{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("environment at %q not found", path))
	}
	if err != nil {
		return Environment{}, fmt.Errorf("failed to look up environment at %q: %w", path, err)
	}
	return e, nil
}

// DeleteEnvironment removes an environment and (via ON DELETE CASCADE)
// its labels and project links.
func (s *Store) DeleteEnvironment(name string) error {
	res, err := s.db.Exec(`DELETE FROM environments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete environment %q: %w", name, err)
	}
	return requireRowsAffected(res, "environment", name)
}

// UntrackEnvironment is an alias for DeleteEnvironment: it only removes the
// registry row, never touching the environment's files on disk.
func (s *Store) UntrackEnvironment(name string) error {
	return s.DeleteEnvironment(name)
}

// SetFavorite marks or unmarks an environment as a favorite.
func (s *Store) SetFavorite(name string, favorite bool) error {
	res, err := s.db.Exec(`UPDATE environments SET is_favorite = ? WHERE name = ?`, favorite, name)
	if err != nil {
		return fmt.Errorf("failed to set favorite for %q: %w", name, err)
	}
	return requireRowsAffected(res, "environment", name)
}

func requireRowsAffected(res sql.Result, kind, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return zenerr.New(zenerr.NotFound, fmt.Sprintf("%s %q not found", kind, name))
	}
	return nil
}
