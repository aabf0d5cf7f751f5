package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// CurrentSchema is the schema version this binary expects. Migrations are
// additive only: opening an older file upgrades it in place; opening a
// newer file (from a future Zen) is a SchemaError, logged as a warning,
// and the registry continues best-effort.
const CurrentSchema = 4

func chmodOwnerOnly(path string) error {
	return os.Chmod(path, 0o600)
}

var createSequenceStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_environments START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_labels START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_templates START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_template_packages START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_recording_session START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_project_links START 1`,
}

var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS environments (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_environments'),
		name VARCHAR NOT NULL UNIQUE,
		path VARCHAR NOT NULL UNIQUE,
		python_version VARCHAR,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		is_favorite BOOLEAN DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_labels'),
		env_id INTEGER NOT NULL REFERENCES environments(id) ON DELETE CASCADE,
		label VARCHAR NOT NULL,
		created_at TIMESTAMP,
		UNIQUE(env_id, label)
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		uuid VARCHAR PRIMARY KEY,
		project_path VARCHAR NOT NULL,
		env_id INTEGER REFERENCES environments(id) ON DELETE SET NULL,
		message VARCHAR NOT NULL,
		tag VARCHAR,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_templates'),
		name VARCHAR NOT NULL,
		version VARCHAR NOT NULL,
		python_version VARCHAR,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		UNIQUE(name, version)
	)`,
	`CREATE TABLE IF NOT EXISTS template_packages (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_template_packages'),
		template_id INTEGER NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
		package_name VARCHAR NOT NULL,
		version VARCHAR NOT NULL,
		is_pinned BOOLEAN DEFAULT false,
		install_type VARCHAR,
		install_args VARCHAR,
		step_index INTEGER DEFAULT 0,
		UNIQUE(template_id, package_name)
	)`,
	`CREATE TABLE IF NOT EXISTS recording_session (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_recording_session'),
		template_id INTEGER REFERENCES templates(id) ON DELETE CASCADE,
		env_path VARCHAR NOT NULL,
		start_time TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS project_links (
		id INTEGER PRIMARY KEY DEFAULT nextval('seq_project_links'),
		project_path VARCHAR NOT NULL,
		env_id INTEGER NOT NULL REFERENCES environments(id) ON DELETE CASCADE,
		is_default BOOLEAN DEFAULT false,
		tag VARCHAR,
		link_type VARCHAR DEFAULT 'user',
		activation_count INTEGER DEFAULT 0,
		last_activated_at TIMESTAMP,
		created_at TIMESTAMP,
		UNIQUE(project_path, env_id)
	)`,
	`CREATE TABLE IF NOT EXISTS config (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS schema_meta (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
}

var createIndexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_project_links_path ON project_links(project_path)`,
	`CREATE INDEX IF NOT EXISTS idx_labels_env ON labels(env_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_project_path ON notes(project_path)`,
}

// additiveColumns lists columns added after the initial table definitions,
// each guarded by introspection since the backend lacks "ALTER ... IF NOT
// EXISTS".
type additiveColumn struct {
	table, column, ddl string
}

var additiveColumns = []additiveColumn{
	{"environments", "is_favorite", "ALTER TABLE environments ADD COLUMN is_favorite BOOLEAN DEFAULT false"},
	{"template_packages", "install_args", "ALTER TABLE template_packages ADD COLUMN install_args VARCHAR"},
	{"template_packages", "step_index", "ALTER TABLE template_packages ADD COLUMN step_index INTEGER DEFAULT 0"},
	{"project_links", "link_type", "ALTER TABLE project_links ADD COLUMN link_type VARCHAR DEFAULT 'user'"},
	{"project_links", "last_activated_at", "ALTER TABLE project_links ADD COLUMN last_activated_at TIMESTAMP"},
	{"project_links", "activation_count", "ALTER TABLE project_links ADD COLUMN activation_count INTEGER DEFAULT 0"},
}

// initSchema creates every table and index with IF NOT EXISTS, adds any
// missing additive columns, then checks (and if needed migrates) the
// stored schema version.
func initSchema(db DB, log *slog.Logger) error {
	for _, stmt := range createSequenceStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create sequence: %w", err)
		}
	}
	for _, stmt := range createTableStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range createIndexStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	for _, col := range additiveColumns {
		has, err := hasColumn(db, col.table, col.column)
		if err != nil {
			return fmt.Errorf("failed to introspect %s.%s: %w", col.table, col.column, err)
		}
		if has {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.column, err)
		}
	}
	return checkSchemaVersion(db, log)
}

func hasColumn(db DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	nameIdx := -1
	for i, c := range cols {
		if c == "name" {
			nameIdx = i
		}
	}
	if nameIdx < 0 {
		return false, errors.New("pragma table_info did not return a name column")
	}

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return false, err
		}
		if name, ok := vals[nameIdx].(string); ok && name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func checkSchemaVersion(db DB, log *slog.Logger) error {
	row := db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`)
	var raw string
	err := row.Scan(&raw)
	if err != nil {
		// No stored version yet: this is a fresh database at the current schema.
		_, execErr := db.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(CurrentSchema))
		return execErr
	}

	stored, convErr := strconv.Atoi(raw)
	if convErr != nil {
		stored = 0
	}

	switch {
	case stored < CurrentSchema:
		log.Info("registry: migrating schema", "from", stored, "to", CurrentSchema)
		// All migrations to date are additive and already applied above
		// (CREATE TABLE IF NOT EXISTS + guarded ALTER); bumping the stored
		// version is the only remaining step.
		_, err := db.Exec(`UPDATE schema_meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(CurrentSchema))
		return err
	case stored > CurrentSchema:
		log.Warn("registry: schema version is ahead of this binary; continuing read-only-best-effort", "stored", stored, "expected", CurrentSchema)
		return nil
	default:
		return nil
	}
}
