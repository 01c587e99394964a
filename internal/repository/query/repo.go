// Package query persists search queries and their embeddings, deduplicated
// by normalized query text so an already-seen query never costs a second
// embedding call.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/normtext/lawdex/internal/db"
	"github.com/normtext/lawdex/internal/domain"
)

var (
	keyPrefix  = domain.KeyPrefix + "query:"
	counterKey = keyPrefix + "next_id"
)

// store is the consumer interface for query records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo stores query records keyed by id and indexed by normalized text.
type Repo struct {
	store store
}

// New creates a query repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func recordKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func vectorKey(id int64) string {
	return recordKey(id) + ":vec"
}

func textKey(normalizedText string) string {
	h := sha256.Sum256([]byte(normalizedText))
	return keyPrefix + "text:" + hex.EncodeToString(h[:])
}

// FindByText looks up a query by its normalized text. Returns
// domain.ErrNotFound when the text has never been seen.
func (r *Repo) FindByText(ctx context.Context, normalizedText string) (int64, []float32, error) {
	data, err := r.store.Get(ctx, textKey(normalizedText))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil, domain.ErrNotFound
		}
		return 0, nil, fmt.Errorf("lookup query text: %w", err)
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("corrupt query text mapping: %w", err)
	}
	vec, err := r.GetEmbedding(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	return id, vec, nil
}

// Create persists a new query record with its embedding and registers the
// normalized text for dedup. The text mapping is claimed with SET NX so two
// concurrent misses for the same text converge on one record: the loser's
// record stays orphaned but unreferenced, and the winner's id and stored
// vector are returned instead.
func (r *Repo) Create(ctx context.Context, normalizedText, reducedText string, vec []float32) (int64, []float32, error) {
	id, err := r.store.IncrBy(ctx, counterKey, 1)
	if err != nil {
		return 0, nil, fmt.Errorf("allocate query id: %w", err)
	}
	if err := r.store.HSet(ctx, recordKey(id), map[string]string{
		"text_reduced": reducedText,
	}); err != nil {
		return 0, nil, fmt.Errorf("save query %d: %w", id, err)
	}
	if err := r.store.Set(ctx, vectorKey(id), vectorToBytes(vec)); err != nil {
		return 0, nil, fmt.Errorf("save query embedding %d: %w", id, err)
	}
	ok, err := r.store.SetNX(ctx, textKey(normalizedText), []byte(strconv.FormatInt(id, 10)), 0)
	if err != nil {
		return 0, nil, fmt.Errorf("register query text %d: %w", id, err)
	}
	if !ok {
		winID, winVec, err := r.FindByText(ctx, normalizedText)
		if err != nil {
			return 0, nil, fmt.Errorf("resolve concurrent query create: %w", err)
		}
		return winID, winVec, nil
	}
	return id, vec, nil
}

// GetEmbedding returns the stored embedding of a query. Returns
// domain.ErrQueryNotFound for unknown ids.
func (r *Repo) GetEmbedding(ctx context.Context, id int64) ([]float32, error) {
	data, err := r.store.Get(ctx, vectorKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("query %d: %w", id, domain.ErrQueryNotFound)
		}
		return nil, fmt.Errorf("get query embedding %d: %w", id, err)
	}
	vec, err := bytesToVector(data)
	if err != nil {
		return nil, fmt.Errorf("query embedding %d: %w", id, err)
	}
	return vec, nil
}

// Get returns the stored query record. Returns domain.ErrQueryNotFound for
// unknown ids.
func (r *Repo) Get(ctx context.Context, id int64) (domain.QueryRecord, error) {
	fields, err := r.store.HGetAll(ctx, recordKey(id))
	if err != nil {
		return domain.QueryRecord{}, fmt.Errorf("get query %d: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.QueryRecord{}, fmt.Errorf("query %d: %w", id, domain.ErrQueryNotFound)
	}
	return domain.QueryRecord{ID: id, TextReduced: fields["text_reduced"]}, nil
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
