package config

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectSQLite opens a local SQLite database file and sets it as the global DB.
// Used by the maintenance tools for offline copies and by tests.
func ConnectSQLite(path string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), initConfig())
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps transactions on the same handle.
	if sqlDB, derr := conn.DB(); derr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	InstallPlugins(conn)
	db = conn
	return conn, nil
}
