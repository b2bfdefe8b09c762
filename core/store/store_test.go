package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runBackendTests exercises the Backend contract. Every backend must pass it.
func runBackendTests(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	setup := func(t *testing.T) Backend {
		b := newBackend(t)
		require.NoError(t, b.Ensure(ctx, "suppliers"))
		return b
	}

	t.Run("insert_assigns_id", func(t *testing.T) {
		b := setup(t)
		records, err := b.Insert(ctx, "suppliers", []Record{{"name": "Acme", "risk": float64(42)}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.NotEmpty(t, records[0].ID())
		assert.Equal(t, "Acme", records[0]["name"])
		assert.Equal(t, float64(42), records[0]["risk"])

		read, err := b.Get(ctx, "suppliers", records[0].ID())
		require.NoError(t, err)
		assert.Equal(t, records[0], read)
	})

	t.Run("insert_keeps_given_id", func(t *testing.T) {
		b := setup(t)
		records, err := b.Insert(ctx, "suppliers", []Record{{"id": "s1", "name": "Acme"}})
		require.NoError(t, err)
		assert.Equal(t, "s1", records[0].ID())

		_, err = b.Insert(ctx, "suppliers", []Record{{"id": "s1", "name": "Again"}})
		var se *Error
		require.True(t, errors.As(err, &se), "expected a backend error, got %v", err)
		assert.NotEmpty(t, se.Message)

		_, err = b.Insert(ctx, "suppliers", []Record{{"id": 5}})
		require.True(t, errors.As(err, &se))
	})

	t.Run("get_not_found", func(t *testing.T) {
		b := setup(t)
		_, err := b.Get(ctx, "suppliers", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("filter", func(t *testing.T) {
		b := setup(t)
		_, err := b.Insert(ctx, "suppliers", []Record{
			{"id": "a", "name": "Acme", "risk": float64(42), "audited": true},
			{"id": "b", "name": "Bolt", "risk": float64(10), "audited": false},
			{"id": "c", "name": "Cord", "risk": float64(42), "audited": false},
		})
		require.NoError(t, err)

		records, err := b.Select(ctx, "suppliers", Query{Filters: map[string]string{"risk": "42"}, Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(records))

		records, err = b.Select(ctx, "suppliers", Query{Filters: map[string]string{"risk": "42", "audited": "false"}, Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(records))

		records, err = b.Select(ctx, "suppliers", Query{Filters: map[string]string{"id": "b"}, Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(records))

		records, err = b.Select(ctx, "suppliers", Query{Filters: map[string]string{"name": "Nobody"}, Limit: NoLimit})
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Len(t, records, 0)
	})

	t.Run("order_and_paginate", func(t *testing.T) {
		b := setup(t)
		var records []Record
		for i := 0; i < 10; i++ {
			// insert in reverse so that insertion order differs from property order
			records = append(records, Record{"id": fmt.Sprintf("r%d", i), "rank": float64(9 - i)})
		}
		_, err := b.Insert(ctx, "suppliers", records)
		require.NoError(t, err)

		all, err := b.Select(ctx, "suppliers", Query{Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, "r0", all[0].ID(), "default order is insertion order")

		asc := &Order{Property: "rank"}
		var sequence []string
		for offset := 0; offset < 10; offset += 3 {
			page, err := b.Select(ctx, "suppliers", Query{Order: asc, Offset: offset, Limit: 3})
			require.NoError(t, err)
			sequence = append(sequence, ids(page)...)
		}
		assert.Equal(t, []string{"r9", "r8", "r7", "r6", "r5", "r4", "r3", "r2", "r1", "r0"}, sequence)

		page, err := b.Select(ctx, "suppliers", Query{Order: &Order{Property: "rank", Descending: true}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"r0", "r1"}, ids(page))

		page, err = b.Select(ctx, "suppliers", Query{Order: asc, Offset: 8, Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r0"}, ids(page))

		page, err = b.Select(ctx, "suppliers", Query{Order: asc, Limit: 0})
		require.NoError(t, err)
		assert.Len(t, page, 0)

		page, err = b.Select(ctx, "suppliers", Query{Order: asc, Offset: 20, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, page, 0)
	})

	t.Run("order_ties_are_stable", func(t *testing.T) {
		b := setup(t)
		_, err := b.Insert(ctx, "suppliers", []Record{
			{"id": "c", "risk": float64(1)},
			{"id": "a", "risk": float64(1)},
			{"id": "b", "risk": float64(1)},
		})
		require.NoError(t, err)
		page, err := b.Select(ctx, "suppliers", Query{Order: &Order{Property: "risk"}, Limit: NoLimit})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(page))
	})

	t.Run("invalid_property", func(t *testing.T) {
		b := setup(t)
		var se *Error
		_, err := b.Select(ctx, "suppliers", Query{Filters: map[string]string{"x'; drop": "1"}, Limit: NoLimit})
		assert.True(t, errors.As(err, &se))
		_, err = b.Select(ctx, "suppliers", Query{Order: &Order{Property: "a-b"}, Limit: NoLimit})
		assert.True(t, errors.As(err, &se))
	})

	t.Run("update_merges", func(t *testing.T) {
		b := setup(t)
		_, err := b.Insert(ctx, "suppliers", []Record{{"id": "s1", "name": "Acme", "risk": float64(42)}})
		require.NoError(t, err)

		updated, err := b.Update(ctx, "suppliers", "s1", Record{"risk": float64(10), "id": "other"})
		require.NoError(t, err)
		assert.Equal(t, Record{"id": "s1", "name": "Acme", "risk": float64(10)}, updated)

		read, err := b.Get(ctx, "suppliers", "s1")
		require.NoError(t, err)
		assert.Equal(t, updated, read)

		_, err = b.Update(ctx, "suppliers", "nope", Record{"risk": float64(1)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete_returns_previous", func(t *testing.T) {
		b := setup(t)
		_, err := b.Insert(ctx, "suppliers", []Record{{"id": "s1", "name": "Acme"}})
		require.NoError(t, err)

		deleted, err := b.Delete(ctx, "suppliers", "s1")
		require.NoError(t, err)
		assert.Equal(t, Record{"id": "s1", "name": "Acme"}, deleted)

		_, err = b.Get(ctx, "suppliers", "s1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = b.Delete(ctx, "suppliers", "s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown_table", func(t *testing.T) {
		b := setup(t)
		var se *Error
		_, err := b.Select(ctx, "missing", Query{Limit: NoLimit})
		assert.True(t, errors.As(err, &se), "expected backend error, got %v", err)
	})
}

func ids(records []Record) []string {
	result := []string{}
	for _, r := range records {
		result = append(result, r.ID())
	}
	return result
}

func TestMemory(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		return NewMemory()
	})
}

func TestSQLite(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		s, err := OpenSQLite("file::memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestTextValue(t *testing.T) {
	testCases := []struct {
		value    interface{}
		expected string
		ok       bool
	}{
		{"Acme", "Acme", true},
		{float64(42), "42", true},
		{4.5, "4.5", true},
		{true, "true", true},
		{nil, "", false},
		{[]interface{}{float64(1)}, "[1]", true},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.value), func(t *testing.T) {
			text, ok := TextValue(tc.value)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, text)
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("suppliers"))
	assert.True(t, ValidIdentifier("_audit_log2"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("2fast"))
	assert.False(t, ValidIdentifier("a.b"))
	assert.False(t, ValidIdentifier(`a"b`))
}
