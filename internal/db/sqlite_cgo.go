//go:build cgo

package db

import (
	gsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteDialector(dsn string) gorm.Dialector { return gsqlite.Open(dsn) }
