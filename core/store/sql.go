// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablegate/core/logger"
)

// dialect captures the differences between the SQL databases
type dialect interface {
	// createTable returns the statement which creates table if it does not exist
	createTable(table string) string
	// table returns the qualified table name
	table(table string) string
	// placeholder returns the n-th (1-based) parameter placeholder
	placeholder(n int) string
	// text returns an expression for the text representation of a property
	text(property string) string
	// orderBy returns the order clause for a property, ties broken on the id
	orderBy(property string, descending bool) string
	// unlimited is the limit clause needed in front of an offset without limit
	unlimited() string
	// lockRow is appended to a select which reads a row for an update
	lockRow() string
	// wrapError converts a driver error into a store error
	wrapError(err error) error
}

// sqlBackend implements Backend on top of a database/sql connection. Every
// table has the columns id, serial and properties.
type sqlBackend struct {
	db *sql.DB
	d  dialect
}

func (b *sqlBackend) Ensure(ctx context.Context, table string) error {
	if !ValidIdentifier(table) {
		return &Error{Message: "invalid table name '" + table + "'"}
	}
	logger.FromContext(ctx).Debugln("ensure table:", b.d.table(table))
	_, err := b.db.ExecContext(ctx, b.d.createTable(table))
	return b.d.wrapError(err)
}

func (b *sqlBackend) Select(ctx context.Context, table string, query Query) ([]Record, error) {
	if err := validateQuery(table, query); err != nil {
		return nil, err
	}

	var (
		where  []string
		params []interface{}
	)
	for _, property := range query.filterProperties() {
		params = append(params, query.Filters[property])
		column := b.d.text(property)
		if property == IDProperty {
			column = "id"
		}
		where = append(where, column+" = "+b.d.placeholder(len(params)))
	}

	sqlQuery := "SELECT id, properties FROM " + b.d.table(table)
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	if query.Order != nil && query.Order.Property == IDProperty {
		sqlQuery += " ORDER BY id " + direction(query.Order.Descending)
	} else if query.Order != nil {
		sqlQuery += " ORDER BY " + b.d.orderBy(query.Order.Property, query.Order.Descending)
	} else {
		sqlQuery += " ORDER BY serial ASC"
	}
	if query.Limit >= 0 {
		params = append(params, query.Limit)
		sqlQuery += " LIMIT " + b.d.placeholder(len(params))
	}
	if query.Offset > 0 {
		if query.Limit < 0 {
			sqlQuery += b.d.unlimited()
		}
		params = append(params, query.Offset)
		sqlQuery += " OFFSET " + b.d.placeholder(len(params))
	}

	rows, err := b.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Debugf("cannot execute query `%s` %+v", sqlQuery, params)
		return nil, b.d.wrapError(err)
	}
	defer rows.Close()

	result := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, b.d.wrapError(err)
	}
	return result, nil
}

func direction(descending bool) string {
	if descending {
		return "DESC"
	}
	return "ASC"
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		id         string
		properties []byte
	)
	if err := row.Scan(&id, &properties); err != nil {
		return nil, err
	}
	record, err := decodeRecord(id, properties)
	if err != nil {
		return nil, fmt.Errorf("cannot decode properties of %s: %w", id, err)
	}
	return record, nil
}

func (b *sqlBackend) scanOne(row scanner) (Record, error) {
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, b.d.wrapError(err)
	}
	return record, nil
}

func (b *sqlBackend) Get(ctx context.Context, table string, id string) (Record, error) {
	if !ValidIdentifier(table) {
		return nil, &Error{Message: "invalid table name '" + table + "'"}
	}
	sqlQuery := "SELECT id, properties FROM " + b.d.table(table) + " WHERE id = " + b.d.placeholder(1)
	return b.scanOne(b.db.QueryRowContext(ctx, sqlQuery, id))
}

func (b *sqlBackend) Insert(ctx context.Context, table string, records []Record) ([]Record, error) {
	if !ValidIdentifier(table) {
		return nil, &Error{Message: "invalid table name '" + table + "'"}
	}
	prepared, err := prepareInsert(records)
	if err != nil {
		return nil, err
	}

	insertQuery := "INSERT INTO " + b.d.table(table) + " (id, properties) VALUES (" +
		b.d.placeholder(1) + ", " + b.d.placeholder(2) + ") RETURNING id, properties"

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, b.d.wrapError(err)
	}
	defer tx.Rollback()

	result := make([]Record, 0, len(prepared))
	for _, record := range prepared {
		properties, err := json.Marshal(record.properties())
		if err != nil {
			return nil, fmt.Errorf("cannot encode properties: %w", err)
		}
		inserted, err := b.scanOne(tx.QueryRowContext(ctx, insertQuery, record.ID(), string(properties)))
		if err != nil {
			return nil, err
		}
		result = append(result, inserted)
	}
	if err := tx.Commit(); err != nil {
		return nil, b.d.wrapError(err)
	}
	return result, nil
}

func (b *sqlBackend) Update(ctx context.Context, table string, id string, patch Record) (Record, error) {
	if !ValidIdentifier(table) {
		return nil, &Error{Message: "invalid table name '" + table + "'"}
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, b.d.wrapError(err)
	}
	defer tx.Rollback()

	selectQuery := "SELECT id, properties FROM " + b.d.table(table) + " WHERE id = " + b.d.placeholder(1) + b.d.lockRow()
	current, err := b.scanOne(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		return nil, err
	}

	properties, err := json.Marshal(merge(current, patch).properties())
	if err != nil {
		return nil, fmt.Errorf("cannot encode properties: %w", err)
	}
	updateQuery := "UPDATE " + b.d.table(table) + " SET properties = " + b.d.placeholder(1) +
		" WHERE id = " + b.d.placeholder(2) + " RETURNING id, properties"
	updated, err := b.scanOne(tx.QueryRowContext(ctx, updateQuery, string(properties), id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, b.d.wrapError(err)
	}
	return updated, nil
}

func (b *sqlBackend) Delete(ctx context.Context, table string, id string) (Record, error) {
	if !ValidIdentifier(table) {
		return nil, &Error{Message: "invalid table name '" + table + "'"}
	}
	deleteQuery := "DELETE FROM " + b.d.table(table) + " WHERE id = " + b.d.placeholder(1) + " RETURNING id, properties"
	return b.scanOne(b.db.QueryRowContext(ctx, deleteQuery, id))
}
