package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Insert(ctx, "process_events", Document{"process_id": "p1", "state": "processing", "seq": 1}))
	require.NoError(t, store.Insert(ctx, "process_events", Document{"process_id": "p1", "state": "terminated", "seq": 2}))
	require.NoError(t, store.Insert(ctx, "process_events", Document{"process_id": "p2", "state": "processing", "seq": 1}))

	var got []Document
	err := store.Find(ctx, "process_events", Document{"process_id": "p1"}, func(d Document) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryStore_FindNoMatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, "c", Document{"x": 1}))

	var got []Document
	err := store.Find(ctx, "c", Document{"x": 2}, func(d Document) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_InsertIsolatesCallerMap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	doc := Document{"x": 1}
	require.NoError(t, store.Insert(ctx, "c", doc))
	doc["x"] = 2

	var got Document
	err := store.Find(ctx, "c", Document{}, func(d Document) error {
		got = d
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got["x"])
}

func TestMemoryStore_FindStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, "c", Document{"x": 1}))
	require.NoError(t, store.Insert(ctx, "c", Document{"x": 2}))

	boom := assertError
	count := 0
	err := store.Find(ctx, "c", Document{}, func(d Document) error {
		count++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count)
}

var assertError = &testErr{"boom"}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }
