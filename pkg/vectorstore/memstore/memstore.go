// Package memstore provides an in-process, brute-force vector store. It
// exposes its record table through vectorstore.Scanner so the engine can
// apply TTL pruning, and can snapshot itself to disk.
package memstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/softreason/softreason/pkg/vectorstore"
)

// Store is a cosine-similarity vector store held entirely in memory. Search
// is linear in the number of records.
type Store struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]*vectorstore.Record
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the uuid-based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates a store for vectors of the given dimension. A dimension of 0
// accepts the dimension of the first vector written.
func New(dimension int, opts ...Option) *Store {
	s := &Store{
		dimension: dimension,
		records:   make(map[string]*vectorstore.Record),
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkDimension must be called with the write lock held.
func (s *Store) checkDimension(vector []float32) error {
	if s.dimension == 0 {
		s.dimension = len(vector)
		return nil
	}
	if len(vector) != s.dimension {
		return fmt.Errorf("%w: expected %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, len(vector))
	}
	return nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, vector []float32, payload vectorstore.Payload) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}
	id := s.newID()
	s.records[id] = &vectorstore.Record{
		ID:      id,
		Vector:  append([]float32(nil), vector...),
		Payload: payload.Clone(),
	}
	return id, nil
}

// BatchUpsert implements vectorstore.Store. Vectors are written in order and
// the call stops at the first invalid vector, returning the ids written so far.
func (s *Store) BatchUpsert(ctx context.Context, vectors [][]float32, payloads []vectorstore.Payload) ([]any, error) {
	if len(vectors) != len(payloads) {
		return nil, vectorstore.ErrLengthMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]any, 0, len(vectors))
	for i, vec := range vectors {
		if err := s.checkDimension(vec); err != nil {
			return ids, fmt.Errorf("memstore: batch item %d: %w", i, err)
		}
		id := s.newID()
		s.records[id] = &vectorstore.Record{
			ID:      id,
			Vector:  append([]float32(nil), vec...),
			Payload: payloads[i].Clone(),
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, len(vector))
	}

	records := make([]vectorstore.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, *rec)
	}
	return vectorstore.TopK(records, vector, topK, filter), nil
}

// Rescore implements vectorstore.Rescorer.
func (s *Store) Rescore(ctx context.Context, vector []float32, ids []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			scores[id] = vectorstore.Similarity(vector, rec.Vector)
		}
	}
	return scores, nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Count implements vectorstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Records implements vectorstore.Scanner. The returned records are copies.
func (s *Store) Records(ctx context.Context) ([]vectorstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]vectorstore.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, vectorstore.Record{
			ID:      rec.ID,
			Vector:  append([]float32(nil), rec.Vector...),
			Payload: rec.Payload.Clone(),
		})
	}
	return out, nil
}

// Put inserts a record with a caller-chosen id, replacing any existing one.
func (s *Store) Put(rec vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDimension(rec.Vector); err != nil {
		return err
	}
	s.records[rec.ID] = &vectorstore.Record{
		ID:      rec.ID,
		Vector:  append([]float32(nil), rec.Vector...),
		Payload: rec.Payload.Clone(),
	}
	return nil
}

const (
	maxPreallocRecords = 4096
	maxRecordBytes     = 16 << 20
)

// Save persists the store to a file.
// Format: [dimension:uint32][count:uint32] then for each record
// [len:uint32][msgpack(Record)].
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("memstore: save failed: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimension)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.records))); err != nil {
		return err
	}

	for _, rec := range s.records {
		data, err := msgpack.Marshal(rec)
		if err != nil {
			return fmt.Errorf("memstore: encode record %s: %w", rec.ID, err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(data))); err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	return f.Sync()
}

// Load replaces the store contents with a snapshot written by Save.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("memstore: load failed: %w", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return err
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && dim != 0 && int(dim) != s.dimension {
		return fmt.Errorf("%w: file has %d, store expects %d", vectorstore.ErrDimensionMismatch, dim, s.dimension)
	}

	// count and size come from the file, so they only bound the loop.
	records := make(map[string]*vectorstore.Record, min(count, maxPreallocRecords))
	for i := uint32(0); i < count; i++ {
		var size uint32
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			return fmt.Errorf("memstore: read record %d of %d: %w", i, count, err)
		}
		if size > maxRecordBytes {
			return fmt.Errorf("memstore: record %d claims %d bytes, limit is %d", i, size, maxRecordBytes)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("memstore: read record %d of %d: %w", i, count, err)
		}
		var rec vectorstore.Record
		if err := msgpack.Unmarshal(buf, &rec); err != nil {
			return fmt.Errorf("memstore: decode record %d: %w", i, err)
		}
		records[rec.ID] = &rec
	}

	if dim != 0 {
		s.dimension = int(dim)
	}
	s.records = records
	return nil
}
