// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/relabs-tech/tablegate/core/csql"
)

// Postgres is a backend on a postgres database schema. Properties are stored as jsonb.
type Postgres struct {
	sqlBackend
}

// NewPostgres returns a backend for the schema of db
func NewPostgres(db *csql.DB) *Postgres {
	return &Postgres{sqlBackend{db: db.DB, d: postgresDialect{schema: db.Schema}}}
}

type postgresDialect struct {
	schema string
}

func (d postgresDialect) table(table string) string {
	return d.schema + ".\"" + table + "\""
}

func (d postgresDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE table IF NOT EXISTS %s (
id varchar NOT NULL PRIMARY KEY,
serial bigserial NOT NULL,
properties jsonb NOT NULL DEFAULT '{}'::jsonb);
CREATE index IF NOT EXISTS "sort_index_%s_serial" ON %s(serial);`,
		d.table(table), table, d.table(table))
}

func (d postgresDialect) placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d postgresDialect) text(property string) string {
	return "properties->>'" + property + "'"
}

func (d postgresDialect) orderBy(property string, descending bool) string {
	dir := direction(descending)
	return "properties->'" + property + "' " + dir + ", id " + dir
}

func (d postgresDialect) unlimited() string {
	return ""
}

func (d postgresDialect) lockRow() string {
	return " FOR UPDATE"
}

func (d postgresDialect) wrapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &Error{Message: pqErr.Message, Err: err}
	}
	return backendError(err)
}
