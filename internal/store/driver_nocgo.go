//go:build nocgo

package store

// The nocgo build uses modernc.org/sqlite's pure-Go driver. sqlite-vec is a
// cgo extension, so this build never has a vector extension available and
// always degrades to brute-force in-process cosine search (spec §4.A).
import (
	_ "modernc.org/sqlite"
)

func init() {
	sqliteDriver = "sqlite"
}
