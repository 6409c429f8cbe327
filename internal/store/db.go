// Package store implements Alexandria's storage kernel (spec §4.A): an
// embedded, single-file relational store with WAL journaling, foreign
// keys, a lexical full-text index over memory content, and an optional
// sqlite-vec dense-vector index that degrades to brute-force in-process
// cosine search when unavailable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/logging"
)

// DB wraps the opened database connection with the kernel's invariants:
// single writer, WAL mode, foreign keys on, and vector-extension detection.
type DB struct {
	conn       *sql.DB
	path       string
	mu         sync.RWMutex
	vectorExt  bool
	requireVec bool
}

// sqliteDriver is overridden by build-tag-specific init() functions:
// cgo builds register "sqlite3" (mattn/go-sqlite3, needed for sqlite-vec),
// the nocgo build tag uses modernc.org/sqlite's pure-Go "sqlite" driver.
var sqliteDriver = "sqlite3"

// Open opens (creating if necessary, when createIfMissing is true) the
// database at path, applies kernel PRAGMAs, and runs migrations.
func Open(path string, createIfMissing bool, requireVec bool) (*DB, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if !createIfMissing {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, alexandriaerr.New(alexandriaerr.KindNotFound, fmt.Sprintf("database does not exist: %s", path))
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory %s: %w", dir, err)
	}

	conn, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	// Single-writer discipline (spec §5): one connection avoids SQLITE_BUSY
	// storms under WAL and matches the "single-process, single-writer" model.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Warn("pragma failed (%s): %v", pragma, err)
		}
	}

	db := &DB{conn: conn, path: path, requireVec: requireVec}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	db.detectVectorExtension()
	if requireVec && !db.vectorExt {
		conn.Close()
		return nil, alexandriaerr.New(alexandriaerr.KindVectorUnavailable, "sqlite-vec extension required but unavailable")
	}
	if !db.vectorExt {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec unavailable; dense search will use brute-force in-process cosine comparison")
	}

	return db, nil
}

// Conn exposes the raw *sql.DB for callers that build their own prepared
// statements (memory, eventlog, reviewer, search packages all sit atop it).
func (d *DB) Conn() *sql.DB { return d.conn }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// HasVectorExtension reports whether sqlite-vec's vec0 virtual table is
// available in this connection.
func (d *DB) HasVectorExtension() bool { return d.vectorExt }

// Close closes the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

// InTransaction runs fn inside a single SQL transaction, committing on
// success and rolling back on error or panic.
func (d *DB) InTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Get(logging.CategoryStore).Error("rollback failed: %v (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}
	return nil
}

func (d *DB) detectVectorExtension() {
	var name string
	err := d.conn.QueryRow("SELECT name FROM pragma_module_list WHERE name = 'vec0'").Scan(&name)
	d.vectorExt = err == nil
}
