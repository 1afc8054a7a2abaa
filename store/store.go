// Package store keeps recorded crawls in SQLite for the vanilla versus
// ad-block comparison: one crawl instance per artifact, its events in the
// collection of the crawl profile that produced it.
package store

import (
	"database/sql"

	"github.com/hazyhaar/cvwatch/dbopen"
	"github.com/hazyhaar/cvwatch/idgen"
)

// Store is the cvwatch database handle.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Open opens (or creates) the database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an open database. The schema is not applied; see Init.
func New(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Default}
}

// Init creates every collection and index. It is idempotent.
func (s *Store) Init() error {
	_, err := s.DB.Exec(Schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
