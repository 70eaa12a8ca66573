//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3, selected with the cgo_sqlite
// build tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
package parser

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)
