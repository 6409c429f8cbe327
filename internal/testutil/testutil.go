// Package testutil holds small fixtures shared across package tests. It is
// never imported by production code.
package testutil

import (
	"testing"

	"github.com/franalgaba/alexandria/internal/store"
)

// OpenDB opens a throwaway database in t's temp directory and registers
// cleanup on t.
func OpenDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir()+"/alexandria.db", true, false)
	if err != nil {
		t.Fatalf("testutil.OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
