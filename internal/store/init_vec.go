//go:build sqlite_vec && !nocgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Auto-registers the vec0 virtual table module with the mattn/go-sqlite3
	// driver so CREATE VIRTUAL TABLE ... USING vec0(...) works without a
	// separate LoadExtension call.
	vec.Auto()
}
