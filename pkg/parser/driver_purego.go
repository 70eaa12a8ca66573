//go:build !cgo_sqlite

package parser

import (
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
