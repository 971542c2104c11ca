package history

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store wraps Badger for run history.
type Store struct {
	db *badger.DB
}

// Open opens or creates a history store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that is discarded on Close.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a run record.
func (s *Store) Put(r *Record) error {
	if r.ID == "" {
		return errors.New("run ID cannot be empty")
	}
	value, err := r.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", r.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(r.Started, r.ID), value)
	})
}

// List returns runs newest first. A limit of 0 or less returns all runs.
func (s *Store) List(limit int) ([]Record, error) {
	records := []Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			var r Record
			if err := it.Item().Value(r.Decode); err != nil {
				// Skip records that can't be parsed
				continue
			}
			records = append(records, r)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get retrieves a run by ID.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("run ID cannot be empty")
	}

	var record *Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			_, keyID, ok := parseKey(it.Item().Key())
			if !ok || keyID != id {
				continue
			}
			var r Record
			if err := it.Item().Value(r.Decode); err != nil {
				return fmt.Errorf("failed to decode run %s: %w", id, err)
			}
			record = &r
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Cleanup removes runs that started before now minus maxAge and returns
// how many were removed.
func (s *Store) Cleanup(maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge)

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			started, _, ok := parseKey(it.Item().Key())
			if ok && !started.Before(cutoff) {
				// Keys are ordered by start time.
				break
			}
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
