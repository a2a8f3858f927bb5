//go:build spatialite

package mbtiles

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	_ "github.com/shaxbee/go-spatialite"
)

// spatialite 驱动, 需要系统安装 mod_spatialite
const (
	driverName = "spatialite"
	driverType = "spatialite"
)

func isMissingTable(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrError
}
