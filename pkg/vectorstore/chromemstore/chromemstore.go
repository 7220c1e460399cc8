// Package chromemstore adapts an embedded chromem-go collection to the
// vectorstore.Store contract.
//
// chromem keeps metadata as strings, so payload fields are flattened with
// their string form and parsed back on read. The collection cannot be
// enumerated, which makes this store opaque to TTL pruning.
package chromemstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/softreason/softreason/pkg/vectorstore"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "softreason"

// Config holds configuration for the chromem store.
type Config struct {
	Collection string

	// PersistPath enables chromem's gob persistence when set.
	PersistPath string
	Compress    bool

	// Concurrency bounds the goroutines chromem uses for batch inserts.
	Concurrency int
}

// Store wraps a chromem collection. Embeddings are always supplied by the
// caller; the collection's embedding func is never invoked.
type Store struct {
	db          *chromem.DB
	col         *chromem.Collection
	concurrency int
}

// New opens a chromem database and gets or creates the configured collection.
func New(cfg Config) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("chromemstore: open %s: %w", cfg.PersistPath, err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}
	col, err := db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("chromemstore: collection %s: %w", name, err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Store{db: db, col: col, concurrency: concurrency}, nil
}

// noEmbed guards against chromem computing embeddings on its own, which
// would happen for a document without a vector.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromemstore: embeddings must be supplied by the caller")
}

func toDocument(id string, vector []float32, payload vectorstore.Payload) chromem.Document {
	return chromem.Document{
		ID:        id,
		Embedding: append([]float32(nil), vector...),
		Content:   payload.Text,
		Metadata:  stringifyMetadata(payload),
	}
}

func stringifyMetadata(payload vectorstore.Payload) map[string]string {
	meta := make(map[string]string, len(payload.Metadata)+2)
	for k, v := range payload.Metadata {
		meta[k] = fmt.Sprint(v)
	}
	meta[vectorstore.KeyTimestamp] = strconv.FormatFloat(payload.Timestamp, 'f', -1, 64)
	if payload.TTLOverride != nil {
		meta[vectorstore.KeyTTLOverride] = strconv.FormatFloat(*payload.TTLOverride, 'f', -1, 64)
	}
	return meta
}

func toPayload(content string, meta map[string]string) vectorstore.Payload {
	p := vectorstore.Payload{Text: content}
	for k, v := range meta {
		switch k {
		case vectorstore.KeyTimestamp:
			p.Timestamp, _ = strconv.ParseFloat(v, 64)
		case vectorstore.KeyTTLOverride:
			if ttl, err := strconv.ParseFloat(v, 64); err == nil {
				p.TTLOverride = &ttl
			}
		default:
			if p.Metadata == nil {
				p.Metadata = make(map[string]any, len(meta))
			}
			p.Metadata[k] = v
		}
	}
	return p
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, vector []float32, payload vectorstore.Payload) (any, error) {
	id := uuid.New().String()
	if err := s.col.AddDocument(ctx, toDocument(id, vector, payload)); err != nil {
		return nil, fmt.Errorf("chromemstore: add document: %w", err)
	}
	return id, nil
}

// BatchUpsert implements vectorstore.Store. chromem inserts the batch
// concurrently, so on failure no id is reported.
func (s *Store) BatchUpsert(ctx context.Context, vectors [][]float32, payloads []vectorstore.Payload) ([]any, error) {
	if len(vectors) != len(payloads) {
		return nil, vectorstore.ErrLengthMismatch
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	docs := make([]chromem.Document, len(vectors))
	ids := make([]any, len(vectors))
	for i := range vectors {
		id := uuid.New().String()
		docs[i] = toDocument(id, vectors[i], payloads[i])
		ids[i] = id
	}
	if err := s.col.AddDocuments(ctx, docs, s.concurrency); err != nil {
		return nil, fmt.Errorf("chromemstore: add documents: %w", err)
	}
	return ids, nil
}

// Search implements vectorstore.Store. chromem rejects nResults larger than
// the collection, so topK is clamped to the current count.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	n := s.col.Count()
	if topK <= 0 || n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	var where map[string]string
	if len(filter) > 0 {
		where = make(map[string]string, len(filter))
		for k, v := range filter {
			where[k] = fmt.Sprint(v)
		}
	}

	results, err := s.col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromemstore: query: %w", err)
	}

	hits := make([]vectorstore.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, vectorstore.Hit{
			ID:      r.ID,
			Score:   vectorstore.ClampScore(float64(r.Similarity)),
			Payload: toPayload(r.Content, r.Metadata),
		})
	}
	vectorstore.SortHits(hits)
	return hits, nil
}

// Rescore implements vectorstore.Rescorer.
func (s *Store) Rescore(ctx context.Context, vector []float32, ids []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		doc, err := s.col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		scores[id] = vectorstore.Similarity(vector, doc.Embedding)
	}
	return scores, nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("chromemstore: delete: %w", err)
	}
	return nil
}

// Count implements vectorstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.col.Count(), nil
}
