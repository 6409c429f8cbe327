package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
)

func TestOpenCreatesSchemaAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alexandria.db")

	db, err := Open(path, true, false)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, tableExists(db.Conn(), "memory_objects"))
	assert.True(t, tableExists(db.Conn(), "events"))
	assert.True(t, tableExists(db.Conn(), "sessions"))

	db2, err := Open(path, false, false)
	require.NoError(t, err)
	defer db2.Close()
}

func TestOpenFailsWhenMissingAndNotCreating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")
	_, err := Open(path, false, false)
	assert.True(t, alexandriaerr.Is(err, alexandriaerr.KindNotFound))
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alexandria.db")
	db, err := Open(path, true, false)
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO schema_versions (version) VALUES (?)", CurrentSchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, false, false)
	assert.True(t, alexandriaerr.Is(err, alexandriaerr.KindSchemaIncompatible))
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "alexandria.db"), true, false)
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	err = db.InTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO blobs (id, content, byte_length) VALUES ('b1', 'x', 1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM blobs WHERE id = 'b1'").Scan(&count))
	assert.Equal(t, 0, count, "failed transaction must not leave a partial row")
}

func TestColumnExists(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "alexandria.db"), true, false)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, columnExists(db.Conn(), "memory_objects", "content"))
	assert.False(t, columnExists(db.Conn(), "memory_objects", "not_a_real_column"))
}
