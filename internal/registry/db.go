// Package registry is Zen's single-writer relational store: environments,
// labels, notes, templates, project links, activation history, and
// configuration, all in one embedded database file with explicit schema
// versioning and additive forward migration.
package registry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB is the minimal handle the store needs, satisfied by both the real
// embedded-database connection and test doubles.
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Begin() (*sql.Tx, error)
	Close() error
}

// conn wraps a *sql.DB opened against an embedded database file. writeMu
// serializes Exec and Begin calls; reads, and statements run through the
// *sql.Tx that Begin returns, do not take it. mu guards the live
// connection itself across invalidation-recovery.
type conn struct {
	path    string
	log     *slog.Logger
	mu      sync.RWMutex
	writeMu sync.Mutex
	db      *sql.DB
}

// Open opens (or creates) the registry file at path, sets owner-only
// permissions, and enables foreign-key enforcement.
func Open(path string, log *slog.Logger) (DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	c := &conn{path: path, log: log, db: db}
	if err := chmodOwnerOnly(path); err != nil {
		log.Warn("registry: failed to set owner-only permissions", "error", err)
	}
	if _, err := c.Exec("PRAGMA foreign_keys = ON"); err != nil {
		// Not every embedded engine enforces this pragma the same way;
		// log and continue rather than fail the whole open.
		log.Warn("registry: failed to enable foreign key enforcement", "error", err)
	}
	return c, nil
}

func isInvalidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database has been invalidated") ||
		strings.Contains(msg, "FATAL Error") ||
		strings.Contains(msg, "must be restarted")
}

func (c *conn) recover() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Warn("registry: connection invalidated, attempting recovery")
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	db, err := sql.Open("duckdb", c.path)
	if err != nil {
		return fmt.Errorf("failed to reopen registry: %w", err)
	}
	c.db = db
	c.log.Info("registry: connection recovered")
	return nil
}

func (c *conn) Exec(query string, args ...any) (sql.Result, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	result, err := db.Exec(query, args...)
	if err != nil && isInvalidationError(err) {
		if recoverErr := c.recover(); recoverErr != nil {
			return nil, fmt.Errorf("failed to recover registry: %w (original error: %w)", recoverErr, err)
		}
		c.mu.RLock()
		db = c.db
		c.mu.RUnlock()
		result, err = db.Exec(query, args...)
	}
	return result, err
}

func (c *conn) Query(query string, args ...any) (*sql.Rows, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	rows, err := db.Query(query, args...)
	if err != nil && isInvalidationError(err) {
		if recoverErr := c.recover(); recoverErr != nil {
			return nil, fmt.Errorf("failed to recover registry: %w (original error: %w)", recoverErr, err)
		}
		c.mu.RLock()
		db = c.db
		c.mu.RUnlock()
		rows, err = db.Query(query, args...)
	}
	return rows, err
}

func (c *conn) QueryRow(query string, args ...any) *sql.Row {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	return db.QueryRow(query, args...)
}

func (c *conn) Begin() (*sql.Tx, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	tx, err := db.Begin()
	if err != nil && isInvalidationError(err) {
		if recoverErr := c.recover(); recoverErr != nil {
			return nil, fmt.Errorf("failed to recover registry: %w (original error: %w)", recoverErr, err)
		}
		c.mu.RLock()
		db = c.db
		c.mu.RUnlock()
		tx, err = db.Begin()
	}
	return tx, err
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
