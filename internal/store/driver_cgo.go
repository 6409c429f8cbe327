//go:build !nocgo

package store

// The cgo build links mattn/go-sqlite3, which is required by
// github.com/asg017/sqlite-vec-go-bindings/cgo to register the vec0
// virtual table (see init_vec.go).
import (
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqliteDriver = "sqlite3"
}
