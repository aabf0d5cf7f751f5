package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/vistralis/zen/internal/zenerr"
)

const projectLinkColumns = `id, project_path, env_id, is_default, tag, link_type, activation_count, last_activated_at, created_at`

func scanProjectLink(row interface{ Scan(dest ...any) error }) (ProjectLink, error) {
	var l ProjectLink
	var linkType string
	if err := row.Scan(&l.ID, &l.ProjectPath, &l.EnvID, &l.IsDefault, &l.Tag, &linkType, &l.ActivationCount, &l.LastActivatedAt, &l.CreatedAt); err != nil {
		return ProjectLink{}, err
	}
	l.LinkType = LinkType(linkType)
	return l, nil
}

// AssociateProject creates or updates an explicit user link between
// projectPath and env. If isDefault is set, every other link for
// projectPath has its default flag cleared in the same transaction, so
// at most one default survives per project path.
func (s *Store) AssociateProject(clock clockwork.Clock, projectPath string, envID int64, isDefault bool, tag *string) (ProjectLink, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return ProjectLink{}, fmt.Errorf("failed to begin associate-project transaction: %w", err)
	}
	defer tx.Rollback()

	if isDefault {
		if _, err := tx.Exec(`UPDATE project_links SET is_default = false WHERE project_path = ?`, projectPath); err != nil {
			return ProjectLink{}, fmt.Errorf("failed to clear prior defaults for %q: %w", projectPath, err)
		}
	}

	now := clock.Now()
	_, err = tx.Exec(`
		INSERT INTO project_links (project_path, env_id, is_default, tag, link_type, activation_count, created_at)
		VALUES (?, ?, ?, ?, 'user', 0, ?)
		ON CONFLICT (project_path, env_id) DO UPDATE SET
			is_default = excluded.is_default,
			tag = excluded.tag,
			link_type = 'user'
	`, projectPath, envID, isDefault, tag, now)
	if err != nil {
		return ProjectLink{}, fmt.Errorf("failed to associate %q with environment: %w", projectPath, err)
	}

	if err := tx.Commit(); err != nil {
		return ProjectLink{}, fmt.Errorf("failed to commit associate-project transaction: %w", err)
	}
	return s.lookupProjectLink(projectPath, envID)
}

func (s *Store) lookupProjectLink(projectPath string, envID int64) (ProjectLink, error) {
	row := s.db.QueryRow(`SELECT `+projectLinkColumns+` FROM project_links WHERE project_path = ? AND env_id = ?`, projectPath, envID)
	l, err := scanProjectLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ProjectLink{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("no link between %q and environment", projectPath))
	}
	if err != nil {
		return ProjectLink{}, fmt.Errorf("failed to look up project link: %w", err)
	}
	return l, nil
}

// RecordActivation upserts activation bookkeeping for (projectPath, envID):
// on an existing row it increments activation_count and bumps
// last_activated_at, without ever downgrading link_type from "user" to
// "activated"; on a new row it inserts with link_type "activated".
func (s *Store) RecordActivation(clock clockwork.Clock, projectPath string, envID int64) (ProjectLink, error) {
	now := clock.Now()
	_, err := s.db.Exec(`
		INSERT INTO project_links (project_path, env_id, is_default, tag, link_type, activation_count, last_activated_at, created_at)
		VALUES (?, ?, false, NULL, 'activated', 1, ?, ?)
		ON CONFLICT (project_path, env_id) DO UPDATE SET
			activation_count = project_links.activation_count + 1,
			last_activated_at = excluded.last_activated_at
	`, projectPath, envID, now, now)
	if err != nil {
		return ProjectLink{}, fmt.Errorf("failed to record activation for %q: %w", projectPath, err)
	}
	return s.lookupProjectLink(projectPath, envID)
}

func scanProjectLinkCandidate(rows *sql.Rows) (ProjectLinkCandidate, error) {
	var c ProjectLinkCandidate
	var linkType string
	err := rows.Scan(
		&c.ID, &c.ProjectPath, &c.EnvID, &c.IsDefault, &c.Tag, &linkType, &c.ActivationCount, &c.LastActivatedAt, &c.CreatedAt,
		&c.EnvName, &c.EnvPath,
	)
	if err != nil {
		return ProjectLinkCandidate{}, err
	}
	c.LinkType = LinkType(linkType)
	return c, nil
}

const candidateSelect = `
	SELECT pl.id, pl.project_path, pl.env_id, pl.is_default, pl.tag, pl.link_type,
	       pl.activation_count, pl.last_activated_at, pl.created_at,
	       e.name, e.path
	FROM project_links pl
	JOIN environments e ON e.id = pl.env_id
`

const candidateOrder = ` ORDER BY pl.is_default DESC, pl.activation_count DESC, pl.last_activated_at DESC`

// ListLinksForPath returns every candidate (with environment stats) linked
// to exactly projectPath, ranked by default/activation/recency.
func (s *Store) ListLinksForPath(projectPath string) ([]ProjectLinkCandidate, error) {
	rows, err := s.db.Query(candidateSelect+` WHERE pl.project_path = ?`+candidateOrder, projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list links for %q: %w", projectPath, err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ListCandidatesForPaths returns ranked candidates across an explicit set
// of project paths (used by the resolver's upward search).
func (s *Store) ListCandidatesForPaths(paths []string) ([]ProjectLinkCandidate, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}
	query := candidateSelect + ` WHERE pl.project_path IN (` + strings.Join(placeholders, ",") + `)` + candidateOrder
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates for paths: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ListCandidatesUnderPrefix returns ranked candidates whose project_path is
// prefix itself or a descendant no more than maxDepth path segments below
// it (the downward search).
func (s *Store) ListCandidatesUnderPrefix(prefix string, maxDepth int) ([]ProjectLinkCandidate, error) {
	rows, err := s.db.Query(candidateSelect+` WHERE pl.project_path = ? OR pl.project_path LIKE ? || '/%'`+candidateOrder, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates under %q: %w", prefix, err)
	}
	defer rows.Close()

	all, err := collectCandidates(rows)
	if err != nil {
		return nil, err
	}

	out := make([]ProjectLinkCandidate, 0, len(all))
	for _, c := range all {
		if c.ProjectPath == prefix {
			out = append(out, c)
			continue
		}
		rel := strings.TrimPrefix(c.ProjectPath, prefix+"/")
		if depthOf(rel) <= maxDepth {
			out = append(out, c)
		}
	}
	return out, nil
}

func depthOf(rel string) int {
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

func collectCandidates(rows *sql.Rows) ([]ProjectLinkCandidate, error) {
	var out []ProjectLinkCandidate
	for rows.Next() {
		c, err := scanProjectLinkCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetDefaultLink returns the link marked default for projectPath, if any.
func (s *Store) GetDefaultLink(projectPath string) (ProjectLinkCandidate, error) {
	rows, err := s.db.Query(candidateSelect+` WHERE pl.project_path = ? AND pl.is_default = true LIMIT 1`, projectPath)
	if err != nil {
		return ProjectLinkCandidate{}, fmt.Errorf("failed to look up default link for %q: %w", projectPath, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return ProjectLinkCandidate{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("no default link for %q", projectPath))
	}
	return scanProjectLinkCandidate(rows)
}

// GetLastActivatedAnywhere returns the single most recently activated link
// across the entire registry, regardless of project path.
func (s *Store) GetLastActivatedAnywhere() (ProjectLinkCandidate, error) {
	rows, err := s.db.Query(candidateSelect + ` WHERE pl.last_activated_at IS NOT NULL ORDER BY pl.last_activated_at DESC LIMIT 1`)
	if err != nil {
		return ProjectLinkCandidate{}, fmt.Errorf("failed to look up last activated link: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return ProjectLinkCandidate{}, zenerr.New(zenerr.NotFound, "no link has ever been activated")
	}
	return scanProjectLinkCandidate(rows)
}

// PruneDanglingLinks removes project links whose environment no longer
// exists in the registry, or whose project directory no longer exists on
// disk. existsFn reports whether a project path is still present; it is
// injected so callers control the filesystem check (and tests can fake it).
func (s *Store) PruneDanglingLinks(existsFn func(path string) bool) (int, error) {
	res, err := s.db.Exec(`DELETE FROM project_links WHERE env_id NOT IN (SELECT id FROM environments)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune links for removed environments: %w", err)
	}
	n, _ := res.RowsAffected()
	removed := int(n)

	rows, err := s.db.Query(`SELECT DISTINCT project_path FROM project_links`)
	if err != nil {
		return 0, fmt.Errorf("failed to list project link paths: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, p := range paths {
		if existsFn(p) {
			continue
		}
		res, err := s.db.Exec(`DELETE FROM project_links WHERE project_path = ?`, p)
		if err != nil {
			return removed, fmt.Errorf("failed to prune links for gone path %q: %w", p, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

// ResetActivationHistory clears activation_count/last_activated_at,
// optionally only for links whose last activation is older than
// olderThanDays (0 resets everything).
func (s *Store) ResetActivationHistory(olderThanDays int) error {
	query := `UPDATE project_links SET activation_count = 0, last_activated_at = NULL`
	var args []any
	if olderThanDays > 0 {
		query += ` WHERE last_activated_at IS NOT NULL AND last_activated_at < current_timestamp - (? || ' days')::INTERVAL`
		args = append(args, olderThanDays)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to reset activation history: %w", err)
	}
	return nil
}

// RemoveActivatedLinks deletes every link with link_type "activated",
// leaving explicit user links untouched.
func (s *Store) RemoveActivatedLinks() (int, error) {
	res, err := s.db.Exec(`DELETE FROM project_links WHERE link_type = 'activated'`)
	if err != nil {
		return 0, fmt.Errorf("failed to remove activated links: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RemoveAllLinksForPath deletes every link (user and activated) for
// projectPath.
func (s *Store) RemoveAllLinksForPath(projectPath string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM project_links WHERE project_path = ?`, projectPath)
	if err != nil {
		return 0, fmt.Errorf("failed to remove links for %q: %w", projectPath, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
