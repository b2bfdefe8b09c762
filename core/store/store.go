// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package store provides table-oriented backends for the resource gateway.

Every table holds opaque JSON records. A record always carries a string "id"
property, which is assigned on insert when the caller did not provide one
and which is never changed afterwards.

Backends support equality filters, ordering by a single property, offset/limit
pagination, insert, update-by-id and delete-by-id. Point operations report
ErrNotFound when no record matches. Failures reported by the underlying
database are returned as *Error, whose message is meant to be shown to the
caller unchanged.
*/
package store

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// IDProperty is the name of the identifying property of every record
const IDProperty = "id"

// NoLimit is the Query.Limit value for an unlimited result set
const NoLimit = -1

// ErrNotFound is returned by point operations when no record matches the id
var ErrNotFound = errors.New("record not found")

// Error is a failure reported by the backing database, for example a constraint
// violation, a connection problem or a malformed query.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func backendError(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Message: err.Error(), Err: err}
}

// Record is a single JSON object of a table
type Record map[string]interface{}

// ID returns the identifier of the record or an empty string
func (r Record) ID() string {
	id, _ := r[IDProperty].(string)
	return id
}

// properties returns the record without its id, ready to be persisted
func (r Record) properties() Record {
	p := make(Record, len(r))
	for k, v := range r {
		if k != IDProperty {
			p[k] = v
		}
	}
	return p
}

func (r Record) clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Order is the ordering of a list query
type Order struct {
	Property   string
	Descending bool
}

// Query describes a list request. Filters are ANDed equality matches of a property's
// text representation against the value. Order is applied before Offset and Limit.
type Query struct {
	Filters map[string]string
	Order   *Order
	Offset  int
	Limit   int
}

// Backend is a table-oriented store
type Backend interface {
	// Ensure creates the table if it does not exist yet
	Ensure(ctx context.Context, table string) error
	// Select returns all records matching the query
	Select(ctx context.Context, table string, query Query) ([]Record, error)
	// Get returns the record with the given id
	Get(ctx context.Context, table string, id string) (Record, error)
	// Insert adds new records and returns them as persisted
	Insert(ctx context.Context, table string, records []Record) ([]Record, error)
	// Update merges the top-level properties of patch into the record with the given id
	Update(ctx context.Context, table string, id string, patch Record) (Record, error)
	// Delete removes the record with the given id and returns it as it was before removal
	Delete(ctx context.Context, table string, id string) (Record, error)
}

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier returns true if name can be used as table or property name
func ValidIdentifier(name string) bool {
	return identifierRegexp.MatchString(name)
}

func validateQuery(table string, query Query) error {
	if !ValidIdentifier(table) {
		return &Error{Message: "invalid table name '" + table + "'"}
	}
	for _, property := range query.filterProperties() {
		if !ValidIdentifier(property) {
			return &Error{Message: "invalid filter property '" + property + "'"}
		}
	}
	if query.Order != nil && !ValidIdentifier(query.Order.Property) {
		return &Error{Message: "invalid order property '" + query.Order.Property + "'"}
	}
	if query.Offset < 0 {
		return &Error{Message: "offset must not be negative"}
	}
	return nil
}

// filterProperties returns the filter properties in a deterministic order
func (q Query) filterProperties() []string {
	properties := make([]string, 0, len(q.Filters))
	for property := range q.Filters {
		properties = append(properties, property)
	}
	sort.Strings(properties)
	return properties
}

// prepareInsert assigns missing ids
func prepareInsert(records []Record) ([]Record, error) {
	prepared := make([]Record, len(records))
	for i, record := range records {
		c := record.clone()
		switch id := c[IDProperty].(type) {
		case nil:
			c[IDProperty] = uuid.NewString()
		case string:
			if id == "" {
				c[IDProperty] = uuid.NewString()
			}
		default:
			return nil, &Error{Message: "id must be a string"}
		}
		prepared[i] = c
	}
	return prepared, nil
}

// merge applies the top-level properties of patch to record, leaving the id untouched
func merge(record, patch Record) Record {
	merged := record.clone()
	for k, v := range patch {
		if k == IDProperty {
			continue
		}
		merged[k] = v
	}
	return merged
}

// TextValue returns the text representation of a JSON value used for equality filters.
// It matches the way Postgres renders a property with the ->> operator.
func TextValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

func decodeRecord(id string, properties []byte) (Record, error) {
	record := Record{}
	if len(properties) > 0 {
		if err := json.Unmarshal(properties, &record); err != nil {
			return nil, err
		}
	}
	record[IDProperty] = id
	return record, nil
}
