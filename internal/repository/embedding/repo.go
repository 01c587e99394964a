// Package embedding persists the per-law embedding pair: a base vector
// computed once at ingest time and an optimized vector moved by relevance
// feedback. Keys: lawdex:emb:<id>:base and lawdex:emb:<id>:optimized.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/normtext/lawdex/internal/db"
	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/index"
)

var keyPrefix = domain.KeyPrefix + "emb:"

// store is the consumer interface for embedding blobs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores and loads embedding pairs.
type Repo struct {
	store store
	dim   int
}

// New creates an embedding repository. All vectors must have dim components.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

func baseKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10) + ":base"
}

func optimizedKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10) + ":optimized"
}

// Put stores the base embedding for a law and initializes the optimized
// embedding to the same vector. Base is immutable afterwards: nothing in
// this package writes the base key again.
func (r *Repo) Put(ctx context.Context, lawID int64, base []float32) error {
	if len(base) != r.dim {
		return fmt.Errorf("put embedding %d: got %d components, want %d: %w",
			lawID, len(base), r.dim, domain.ErrDimensionMismatch)
	}
	data := vectorToBytes(base)
	if err := r.store.Set(ctx, baseKey(lawID), data); err != nil {
		return fmt.Errorf("put base embedding %d: %w", lawID, err)
	}
	if err := r.store.Set(ctx, optimizedKey(lawID), data); err != nil {
		return fmt.Errorf("init optimized embedding %d: %w", lawID, err)
	}
	return nil
}

// GetBase returns the immutable base embedding of a law.
func (r *Repo) GetBase(ctx context.Context, lawID int64) ([]float32, error) {
	return r.get(ctx, baseKey(lawID), lawID)
}

// GetOptimized returns the feedback-adjusted embedding of a law.
func (r *Repo) GetOptimized(ctx context.Context, lawID int64) ([]float32, error) {
	return r.get(ctx, optimizedKey(lawID), lawID)
}

func (r *Repo) get(ctx context.Context, key string, lawID int64) ([]float32, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("embedding for law %d: %w", lawID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get embedding %d: %w", lawID, err)
	}
	vec, err := bytesToVector(data)
	if err != nil {
		return nil, fmt.Errorf("embedding for law %d: %w", lawID, err)
	}
	if len(vec) != r.dim {
		return nil, fmt.Errorf("embedding for law %d has %d components, want %d: %w",
			lawID, len(vec), r.dim, domain.ErrDimensionMismatch)
	}
	return vec, nil
}

// GetBaseMulti returns base embeddings for the given ids. Laws without an
// embedding are absent from the result map.
func (r *Repo) GetBaseMulti(ctx context.Context, lawIDs []int64) (map[int64][]float32, error) {
	if len(lawIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(lawIDs))
	for i, id := range lawIDs {
		keys[i] = baseKey(id)
	}
	blobs, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get base embeddings: %w", err)
	}

	out := make(map[int64][]float32, len(lawIDs))
	for i, data := range blobs {
		if data == nil {
			continue
		}
		vec, err := bytesToVector(data)
		if err != nil || len(vec) != r.dim {
			continue
		}
		out[lawIDs[i]] = vec
	}
	return out, nil
}

// SetOptimized overwrites only the optimized embedding.
func (r *Repo) SetOptimized(ctx context.Context, lawID int64, vec []float32) error {
	if len(vec) != r.dim {
		return fmt.Errorf("set optimized %d: got %d components, want %d: %w",
			lawID, len(vec), r.dim, domain.ErrDimensionMismatch)
	}
	if err := r.store.Set(ctx, optimizedKey(lawID), vectorToBytes(vec)); err != nil {
		return fmt.Errorf("set optimized embedding %d: %w", lawID, err)
	}
	return nil
}

// ListOptimized returns the full optimized-embedding set, the input for an
// index rebuild.
func (r *Repo) ListOptimized(ctx context.Context) ([]index.Entry, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*:optimized")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}

	ids := make([]int64, 0, len(keys))
	idKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		idStr := strings.TrimSuffix(strings.TrimPrefix(k, keyPrefix), ":optimized")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		idKeys = append(idKeys, k)
	}

	blobs, err := r.store.GetMulti(ctx, idKeys)
	if err != nil {
		return nil, fmt.Errorf("load optimized embeddings: %w", err)
	}

	entries := make([]index.Entry, 0, len(ids))
	for i, data := range blobs {
		if data == nil {
			continue
		}
		vec, err := bytesToVector(data)
		if err != nil {
			return nil, fmt.Errorf("embedding for law %d: %w", ids[i], err)
		}
		entries = append(entries, index.Entry{ID: ids[i], Vector: vec})
	}
	return entries, nil
}
