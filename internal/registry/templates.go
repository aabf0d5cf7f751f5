package registry

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/vistralis/zen/internal/zenerr"
)

const templateColumns = `id, name, version, python_version, created_at, updated_at`

func scanTemplate(row interface{ Scan(dest ...any) error }) (Template, error) {
	var t Template
	if err := row.Scan(&t.ID, &t.Name, &t.Version, &t.PythonVersion, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Template{}, err
	}
	return t, nil
}

// CreateTemplate upserts a template by (name, version).
func (s *Store) CreateTemplate(clock clockwork.Clock, name, version, pythonVersion string) (Template, error) {
	now := clock.Now()
	_, err := s.db.Exec(`
		INSERT INTO templates (name, version, python_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name, version) DO UPDATE SET
			python_version = excluded.python_version,
			updated_at = excluded.updated_at
	`, name, version, pythonVersion, now, now)
	if err != nil {
		return Template{}, fmt.Errorf("failed to create template %s@%s: %w", name, version, err)
	}
	return s.LookupTemplate(name, version)
}

// LookupTemplate finds a template by its (name, version) key.
func (s *Store) LookupTemplate(name, version string) (Template, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE name = ? AND version = ?`, name, version)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, zenerr.New(zenerr.NotFound, fmt.Sprintf("template %s@%s not found", name, version))
	}
	if err != nil {
		return Template{}, fmt.Errorf("failed to look up template %s@%s: %w", name, version, err)
	}
	return t, nil
}

// AddTemplatePackage adds or updates a package entry within a template,
// unique on (template, package). stepIndex controls install ordering.
func (s *Store) AddTemplatePackage(templateID int64, pkg TemplatePackage) error {
	_, err := s.db.Exec(`
		INSERT INTO template_packages (template_id, package_name, version, is_pinned, install_type, install_args, step_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template_id, package_name) DO UPDATE SET
			version = excluded.version,
			is_pinned = excluded.is_pinned,
			install_type = excluded.install_type,
			install_args = excluded.install_args,
			step_index = excluded.step_index
	`, templateID, pkg.PackageName, pkg.Version, pkg.IsPinned, pkg.InstallType, pkg.InstallArgs, pkg.StepIndex)
	if err != nil {
		return fmt.Errorf("failed to add package %q to template: %w", pkg.PackageName, err)
	}
	return nil
}

// RemoveTemplatePackage removes a single package entry from a template.
func (s *Store) RemoveTemplatePackage(templateID int64, packageName string) error {
	res, err := s.db.Exec(`DELETE FROM template_packages WHERE template_id = ? AND package_name = ?`, templateID, packageName)
	if err != nil {
		return fmt.Errorf("failed to remove package %q from template: %w", packageName, err)
	}
	return requireRowsAffected(res, "template package", packageName)
}

// ListTemplatePackages returns a template's packages ordered by step index.
func (s *Store) ListTemplatePackages(templateID int64) ([]TemplatePackage, error) {
	rows, err := s.db.Query(`
		SELECT id, template_id, package_name, version, is_pinned, install_type, install_args, step_index
		FROM template_packages WHERE template_id = ? ORDER BY step_index, package_name
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template packages: %w", err)
	}
	defer rows.Close()

	var out []TemplatePackage
	for rows.Next() {
		var p TemplatePackage
		if err := rows.Scan(&p.ID, &p.TemplateID, &p.PackageName, &p.Version, &p.IsPinned, &p.InstallType, &p.InstallArgs, &p.StepIndex); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template and (via ON DELETE CASCADE) its
// packages.
func (s *Store) DeleteTemplate(name, version string) error {
	res, err := s.db.Exec(`DELETE FROM templates WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return fmt.Errorf("failed to delete template %s@%s: %w", name, version, err)
	}
	return requireRowsAffected(res, "template", name+"@"+version)
}

// TemplateWithPackages is a template plus its resolved package list, as
// returned by ListTemplatesWithPackages.
type TemplateWithPackages struct {
	Template Template
	Packages []TemplatePackage
}

// ListTemplatesWithPackages returns every template with its packages.
func (s *Store) ListTemplatesWithPackages() ([]TemplateWithPackages, error) {
	rows, err := s.db.Query(`SELECT ` + templateColumns + ` FROM templates ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TemplateWithPackages, 0, len(templates))
	for _, t := range templates {
		packages, err := s.ListTemplatePackages(t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TemplateWithPackages{Template: t, Packages: packages})
	}
	return out, nil
}
