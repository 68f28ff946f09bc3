package storage

import (
	"context"
	"errors"
	"time"

	"tomato/internal/event"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the durable backend: a key-value area for small records
// (settings, counters) plus an append-only event log.
type Storage interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
	GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error)
	Close() error
}
