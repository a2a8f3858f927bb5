//go:build !purego && !spatialite

package mbtiles

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)

// isMissingTable SQLITE_ERROR, 即 "no such table"
func isMissingTable(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrError
}
