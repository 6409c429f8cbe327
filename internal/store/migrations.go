package store

import (
	"database/sql"
	"fmt"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/logging"
)

// columnMigration adds one column to an existing table when missing.
// Mirrors the teacher's additive, never-destructive migration style
// (internal/store/migrations.go pendingMigrations in the teacher repo):
// migrations never drop or narrow a column, and legacy rows get the
// column's default value for free via ALTER TABLE ... DEFAULT.
type columnMigration struct {
	Table  string
	Column string
	Def    string
}

// futureMigrations is empty today; it is the hook point for schema
// versions beyond CurrentSchemaVersion, added the same way the teacher
// grows its knowledge_atoms schema over time.
var futureMigrations = []columnMigration{}

func (d *DB) migrate() error {
	timer := logging.StartTimer(logging.CategoryStore, "migrate")
	defer timer.Stop()

	current := d.schemaVersion()
	if current > CurrentSchemaVersion {
		return alexandriaerr.New(alexandriaerr.KindSchemaIncompatible,
			fmt.Sprintf("database schema version %d is newer than this build supports (%d)", current, CurrentSchemaVersion))
	}

	if _, err := d.conn.Exec(baseSchema); err != nil {
		return fmt.Errorf("store: failed to apply base schema: %w", err)
	}

	if _, err := d.conn.Exec(ftsSchema); err != nil {
		logging.Get(logging.CategoryStore).Warn("lexical FTS5 index unavailable: %v", err)
	}

	for _, m := range futureMigrations {
		if !tableExists(d.conn, m.Table) {
			continue
		}
		if columnExists(d.conn, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("store: migration failed for %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Get(logging.CategoryStore).Info("migration applied: added %s.%s", m.Table, m.Column)
	}

	if current < CurrentSchemaVersion {
		if _, err := d.conn.Exec("INSERT INTO schema_versions (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return fmt.Errorf("store: failed to record schema version: %w", err)
		}
	}
	return nil
}

// TryCreateVectorIndex attempts to create the fixed-dimension memory_vec
// virtual table. Safe to call even when sqlite-vec is not loaded; it just
// fails quietly and HasVectorExtension continues reporting false.
func (d *DB) TryCreateVectorIndex(dims int) {
	if !d.vectorExt {
		return
	}
	stmt := fmt.Sprintf(vecSchemaTemplate, dims)
	if _, err := d.conn.Exec(stmt); err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to create memory_vec virtual table: %v", err)
		d.vectorExt = false
	}
}

func (d *DB) schemaVersion() int {
	if !tableExists(d.conn, "schema_versions") {
		return 0
	}
	var version int
	err := d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?", table).Scan(&count)
	return err == nil && count > 0
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
