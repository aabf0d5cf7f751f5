package registry

import (
	"errors"
	"log/slog"
)

// Config builds a Store the way the teacher's dzsvc/sol stores are built:
// a small struct with a Validate method, passed once to New.
type Config struct {
	Logger *slog.Logger
	Path   string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// Store is the single-writer registry handle. All exported methods are
// safe for concurrent use; the embedded DB serializes writes internally.
type Store struct {
	log *slog.Logger
	db  DB
}

// New opens (or creates) the registry file at cfg.Path, applies schema
// migrations, and returns a ready Store.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := Open(cfg.Path, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db, cfg.Logger); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{log: cfg.Logger, db: db}, nil
}

// NewWithDB wraps an already-open DB (used by tests and by anything that
// wants a shared in-memory registry across stores in one process).
func NewWithDB(log *slog.Logger, db DB) (*Store, error) {
	if err := initSchema(db, log); err != nil {
		return nil, err
	}
	return &Store{log: log, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }
