// Package catalog is the persistence layer: a single sqlite file holding the
// dirs/files/duplicates/photos schema from the data model, exposed through
// cursor-scoped transactions. The store owns exactly one connection — callers
// never see connection pooling — matching the single-threaded, one-
// transaction-at-a-time model the scanner assumes.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// cacheSize bounds the in-process LRU of hot Dir/File rows sitting in front
// of the store. It trades a small amount of memory for avoiding a repeat
// round-trip to sqlite for ids the duplicate engine or scanner just touched.
const cacheSize = 4096

// Store is the catalog's persistence handle. It is not safe for concurrent
// use from multiple goroutines — the scanner that owns a Store is expected to
// drive it from a single goroutine, per the single-threaded concurrency
// model.
type Store struct {
	db   *sql.DB
	path string

	dirCache  *lru.Cache[int64, Dir]
	fileCache *lru.Cache[int64, File]
}

// Open opens (or creates) the catalog at path. path may be a filesystem path
// or ":memory:". The schema is (re)created when path does not yet exist, is
// ":memory:", or overwrite is true; otherwise the existing schema is reused
// as-is.
func Open(path string, overwrite bool) (*Store, error) {
	needsInit := overwrite || path == ":memory:"
	if !needsInit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			needsInit = true
		} else if err != nil {
			return nil, fmt.Errorf("failed to stat database path %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}
	// Exactly one connection: pragmas stick, and writers never interleave
	// across pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable foreign keys on %q", path)
	}

	dirCache, err := lru.New[int64, Dir](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dir cache: %w", err)
	}
	fileCache, err := lru.New[int64, File](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}

	s := &Store{db: db, path: path, dirCache: dirCache, fileCache: fileCache}

	if needsInit {
		if err := s.initSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// initSchema drops and recreates every table. It runs outside a user
// transaction: sqlite DDL auto-commits per statement.
func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "failed to apply schema statement %q", stmt)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a cursor scoped to exactly one transaction. It is only valid for the
// duration of the WithTx callback that produced it.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// WithTx runs fn inside one transaction: BEGIN on entry, COMMIT on a nil
// return, ROLLBACK (and re-raise) on any error. Invocations do not nest and
// do not overlap — the store has only one connection, so a nested call would
// deadlock waiting for the outer transaction's connection to free up, which
// is the enforcement mechanism for "transactions do not overlap".
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	tx := &Tx{tx: sqlTx, store: s}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return errors.Wrapf(err, "rollback also failed: %v", rbErr)
		}
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		// Best-effort rollback if the connection is still mid-transaction.
		_ = sqlTx.Rollback()
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}
