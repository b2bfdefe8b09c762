// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // load database driver for sqlite

	"github.com/relabs-tech/tablegate/core/logger"
)

// SQLite is a backend on a sqlite database. Properties are stored as JSON text.
type SQLite struct {
	sqlBackend
}

// OpenSQLite opens the sqlite database at dsn, for example "file:gateway.db" or
// "file::memory:?cache=shared".
func OpenSQLite(dsn string) (*SQLite, error) {
	logger.Default().Infoln("opening sqlite database:", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open sqlite database %s: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach sqlite database %s: %w", dsn, err)
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return NewSQLite(db), nil
}

// NewSQLite returns a backend for db
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{sqlBackend{db: db, d: sqliteDialect{}}}
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteDialect struct{}

func (sqliteDialect) table(table string) string {
	return "\"" + table + "\""
}

func (d sqliteDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
serial INTEGER PRIMARY KEY AUTOINCREMENT,
id TEXT NOT NULL UNIQUE,
properties TEXT NOT NULL DEFAULT '{}')`, d.table(table))
}

func (sqliteDialect) placeholder(int) string {
	return "?"
}

// text renders booleans as true/false like the postgres ->> operator does
func (sqliteDialect) text(property string) string {
	path := "'$." + property + "'"
	return "(CASE json_type(properties, " + path + ") " +
		"WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' " +
		"ELSE CAST(json_extract(properties, " + path + ") AS TEXT) END)"
}

func (sqliteDialect) orderBy(property string, descending bool) string {
	dir := direction(descending)
	value := "json_extract(properties, '$." + property + "')"
	return "(" + value + " IS NULL) " + dir + ", " + value + " " + dir + ", id " + dir
}

func (sqliteDialect) unlimited() string {
	return " LIMIT -1"
}

func (sqliteDialect) lockRow() string {
	return ""
}

func (sqliteDialect) wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Message: strings.TrimPrefix(err.Error(), "SQL logic error: "), Err: err}
}
