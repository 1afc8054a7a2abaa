// Package dbopen opens the cvwatch SQLite database. Every pooled
// connection gets the same pragmas through the driver's DSN:
//
//	busy_timeout = 10000
//	foreign_keys = ON
//	journal_mode = WAL
//	synchronous  = NORMAL
//
// The pure-Go modernc.org/sqlite driver is registered by this package.
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

const memory = ":memory:"

type options struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
	schemas     []string
}

// Option customises Open.
type Option func(*options)

// WithBusyTimeout sets how long, in milliseconds, a connection waits for a
// lock before failing with SQLITE_BUSY. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithSynchronous sets the synchronous mode. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(o *options) { o.synchronous = mode } }

// WithMkdirAll creates the parent directories of the database file.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithSchema queues SQL run once the database is open, in order.
func WithSchema(s string) Option { return func(o *options) { o.schemas = append(o.schemas, s) } }

func newOptions(opts []Option) options {
	o := options{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// DSN returns the driver data source for path with the pragmas of opts.
func DSN(path string, opts ...Option) (string, error) {
	o := newOptions(opts)
	return o.dsn(path)
}

func (o *options) dsn(path string) (string, error) {
	if strings.ContainsRune(path, '?') {
		return "", fmt.Errorf("dbopen: path %q contains '?'", path)
	}
	q := url.Values{}
	// busy_timeout first: the other pragmas may already need a lock.
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout))
	q.Add("_pragma", "foreign_keys(1)")
	if path != memory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", o.synchronous))
	return path + "?" + q.Encode(), nil
}

// Open opens the database at path, runs the queued schemas and checks the
// connection.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := newOptions(opts)

	if o.mkdirAll && path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}
	dsn, err := o.dsn(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if path == memory {
		// Every connection to ":memory:" is a database of its own.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for i, s := range o.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for a test and closes it on
// cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
