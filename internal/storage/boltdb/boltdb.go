// Package boltdb implements storage.Storage on a single BoltDB file.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tomato/internal/event"
	"tomato/internal/storage"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketKV     = []byte("kv")
	bucketEvents = []byte("events")
)

type BoltStore struct {
	db     *bolt.DB
	dbPath string
}

func NewBoltStore(dbPath string) storage.Storage {
	return &BoltStore{dbPath: dbPath}
}

func (s *BoltStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create db directory %s: %w", dir, err)
	}

	log.Printf("Initializing BoltDB database at: %s", s.dbPath)
	db, err := bolt.Open(s.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketKV, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create buckets: %w", err)
	}
	s.db = db
	return nil
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, fmt.Errorf("failed to read key %q: database is closed", key)
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketKV).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if data == nil {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *BoltStore) Put(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return fmt.Errorf("failed to write key %q: database is closed", key)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) SaveEvent(ctx context.Context, e event.Event) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("failed to insert event: database is closed")
	}
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		e.ID = id
		e.Timestamp = e.Timestamp.UTC()
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

func (s *BoltStore) GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error) {
	if s.db == nil {
		return nil, fmt.Errorf("failed to query events: database is closed")
	}
	wanted := make(map[event.EventType]bool, len(eventTypes))
	for _, et := range eventTypes {
		wanted[et] = true
	}

	var events []event.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to decode event: %w", err)
			}
			if e.Timestamp.Before(start) || e.Timestamp.After(end) {
				return nil
			}
			if len(wanted) > 0 && !wanted[e.Type] {
				return nil
			}
			events = append(events, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	// Keys are insertion ordered; timestamps supplied by callers need not be.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		log.Println("Closing database connection.")
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
