// Package badgerstore provides a persistent vector store on top of BadgerDB.
// Records are msgpack-encoded under a single key prefix and searched by a
// full prefix scan, so the store is suited to caches of modest size.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/softreason/softreason/pkg/vectorstore"
)

const recordKeyPrefix = "sr:record:"

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs badger without touching disk. Useful for tests.
	InMemory bool

	SyncWrites       bool
	ValueLogFileSize int64

	// Dimension is the expected vector dimension; 0 disables the check.
	Dimension int
}

// Store implements vectorstore.Store, Scanner and Rescorer using Badger.
type Store struct {
	db        *badger.DB
	dimension int
	ownsDB    bool
}

// Open opens (or creates) a Badger database and wraps it in a Store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for on-disk mode")
	}
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db, dimension: cfg.Dimension, ownsDB: true}, nil
}

// New wraps an existing database. Its lifecycle stays with the caller.
func New(db *badger.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

func (s *Store) checkDimension(vector []float32) error {
	if s.dimension != 0 && len(vector) != s.dimension {
		return fmt.Errorf("%w: expected %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, len(vector))
	}
	return nil
}

func encodeRecord(rec *vectorstore.Record) ([]byte, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: marshal record: %w", err)
	}
	return data, nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, vector []float32, payload vectorstore.Payload) (any, error) {
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}
	rec := &vectorstore.Record{ID: uuid.New().String(), Vector: vector, Payload: payload}
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	}); err != nil {
		return nil, fmt.Errorf("badgerstore: upsert: %w", err)
	}
	return rec.ID, nil
}

// BatchUpsert implements vectorstore.Store. Writes go through a WriteBatch;
// when flushing fails no id is returned, although badger may already have
// committed part of the batch.
func (s *Store) BatchUpsert(ctx context.Context, vectors [][]float32, payloads []vectorstore.Payload) ([]any, error) {
	if len(vectors) != len(payloads) {
		return nil, vectorstore.ErrLengthMismatch
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	ids := make([]any, 0, len(vectors))
	for i, vec := range vectors {
		if err := s.checkDimension(vec); err != nil {
			return nil, fmt.Errorf("badgerstore: batch item %d: %w", i, err)
		}
		rec := &vectorstore.Record{ID: uuid.New().String(), Vector: vec, Payload: payloads[i]}
		data, err := encodeRecord(rec)
		if err != nil {
			return nil, err
		}
		if err := wb.Set(recordKey(rec.ID), data); err != nil {
			return nil, fmt.Errorf("badgerstore: batch set: %w", err)
		}
		ids = append(ids, rec.ID)
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("badgerstore: batch flush: %w", err)
	}
	return ids, nil
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return vectorstore.TopK(records, vector, topK, filter), nil
}

// Rescore implements vectorstore.Rescorer.
func (s *Store) Rescore(ctx context.Context, vector []float32, ids []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(recordKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec vectorstore.Record
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			scores[id] = vectorstore.Similarity(vector, rec.Vector)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: rescore: %w", err)
	}
	return scores, nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(recordKey(id)); err != nil {
			return fmt.Errorf("badgerstore: delete %s: %w", id, err)
		}
	}
	return wb.Flush()
}

// Count implements vectorstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Records implements vectorstore.Scanner.
func (s *Store) Records(ctx context.Context) ([]vectorstore.Record, error) {
	var records []vectorstore.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec vectorstore.Record
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("badgerstore: decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
