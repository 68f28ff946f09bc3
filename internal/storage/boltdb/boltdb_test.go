package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tomato/internal/event"
	"tomato/internal/storage"
)

func setupTestDB(t *testing.T) storage.Storage {
	t.Helper()
	store := NewBoltStore(filepath.Join(t.TempDir(), "tomato.bolt"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestKeyValue(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "pomodoro.settings")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Put(ctx, "pomodoro.settings", []byte(`{"workDuration":50}`)))
	value, err := store.Get(ctx, "pomodoro.settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"workDuration":50}`, string(value))
}

func TestEventsOrderedAndFiltered(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Saved out of timestamp order on purpose.
	inputs := []event.Event{
		{Timestamp: base.Add(10 * time.Minute), Type: event.EventTypePhaseComplete, Tag: "work", Value: 25},
		{Timestamp: base, Type: event.EventTypePhaseStart, Tag: "work"},
		{Timestamp: base.Add(2 * time.Hour), Type: event.EventTypeAppStop},
	}
	var ids []int64
	for _, e := range inputs {
		id, err := store.SaveEvent(ctx, e)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	events, err := store.GetEvents(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.EventTypePhaseStart, events[0].Type)
	assert.Equal(t, event.EventTypePhaseComplete, events[1].Type)
	assert.Equal(t, int64(1), events[1].ID)
	assert.InDelta(t, 25, events[1].Value, 0.001)

	events, err = store.GetEvents(ctx, base.Add(-time.Hour), base.Add(3*time.Hour), event.EventTypeAppStop)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(base.Add(2*time.Hour)))
}

func TestClosedStoreErrors(t *testing.T) {
	store := NewBoltStore(filepath.Join(t.TempDir(), "closed.bolt"))
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.Close())

	_, err := store.SaveEvent(context.Background(), event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStart})
	assert.Error(t, err)
	assert.Error(t, store.Put(context.Background(), "k", []byte("v")))
}
