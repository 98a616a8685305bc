// Package store persists extraction results, the AI call log, classification
// corrections, and pyramid hierarchies with gorm.
package store

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite allows one writer; jobs on other workers queue behind it.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	s := &Store{db: db, log: log.With("component", "store")}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an already-open connection, for callers that manage their own.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	s := &Store{db: db, log: log.With("component", "store")}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&Source{},
		&KnowledgeNode{},
		&Question{},
		&VocabularyTerm{},
		&AICall{},
		&Correction{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
