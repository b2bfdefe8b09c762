// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

type memoryRow struct {
	serial int
	record Record
}

type memoryTable struct {
	serial int
	rows   map[string]*memoryRow
}

// Memory is an in-process backend. Top-level properties are copied on every
// call, nested values are shared.
type Memory struct {
	mutex  sync.RWMutex
	tables map[string]*memoryTable
}

// NewMemory returns an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Ensure implements Backend
func (m *Memory) Ensure(ctx context.Context, table string) error {
	if !ValidIdentifier(table) {
		return &Error{Message: "invalid table name '" + table + "'"}
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = &memoryTable{rows: make(map[string]*memoryRow)}
	}
	return nil
}

func (m *Memory) table(table string) (*memoryTable, error) {
	t, ok := m.tables[table]
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("relation \"%s\" does not exist", table)}
	}
	return t, nil
}

// Select implements Backend
func (m *Memory) Select(ctx context.Context, table string, query Query) ([]Record, error) {
	if err := validateQuery(table, query); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}

	properties := query.filterProperties()
	rows := []*memoryRow{}
	for _, row := range t.rows {
		if matches(row.record, properties, query.Filters) {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if query.Order == nil {
			return a.serial < b.serial
		}
		c := compareValues(a.record[query.Order.Property], b.record[query.Order.Property])
		if c == 0 {
			c = strings.Compare(a.record.ID(), b.record.ID())
		}
		if query.Order.Descending {
			return c > 0
		}
		return c < 0
	})

	if query.Offset >= len(rows) {
		rows = rows[:0]
	} else {
		rows = rows[query.Offset:]
	}
	if query.Limit >= 0 && query.Limit < len(rows) {
		rows = rows[:query.Limit]
	}

	result := make([]Record, len(rows))
	for i, row := range rows {
		result[i] = row.record.clone()
	}
	return result, nil
}

func matches(record Record, properties []string, filters map[string]string) bool {
	for _, property := range properties {
		text, ok := TextValue(record[property])
		if !ok || text != filters[property] {
			return false
		}
	}
	return true
}

// jsonRank follows the Postgres jsonb sort order of types. Missing and null properties
// sort after everything else in ascending order.
func jsonRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 6
	case string:
		return 1
	case float64, json.Number:
		return 2
	case bool:
		return 3
	case []interface{}:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b interface{}) int {
	ra, rb := jsonRank(a), jsonRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ta := a.(type) {
	case string:
		return strings.Compare(ta, b.(string))
	case float64:
		tb, _ := b.(float64)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	case bool:
		tb := b.(bool)
		switch {
		case ta == tb:
			return 0
		case !ta:
			return -1
		}
		return 1
	}
	sa, _ := TextValue(a)
	sb, _ := TextValue(b)
	return strings.Compare(sa, sb)
}

// Get implements Backend
func (m *Memory) Get(ctx context.Context, table string, id string) (Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return row.record.clone(), nil
}

// Insert implements Backend. Either all records are inserted or none.
func (m *Memory) Insert(ctx context.Context, table string, records []Record) ([]Record, error) {
	prepared, err := prepareInsert(records)
	if err != nil {
		return nil, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, record := range prepared {
		id := record.ID()
		if _, exists := t.rows[id]; exists || seen[id] {
			return nil, &Error{Message: fmt.Sprintf("duplicate key value violates unique constraint \"%s_pkey\"", table)}
		}
		seen[id] = true
	}
	result := make([]Record, len(prepared))
	for i, record := range prepared {
		t.serial++
		t.rows[record.ID()] = &memoryRow{serial: t.serial, record: record}
		result[i] = record.clone()
	}
	return result, nil
}

// Update implements Backend
func (m *Memory) Update(ctx context.Context, table string, id string, patch Record) (Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.record = merge(row.record, patch)
	return row.record.clone(), nil
}

// Delete implements Backend
func (m *Memory) Delete(ctx context.Context, table string, id string) (Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(t.rows, id)
	return row.record, nil
}
