// Package law persists law records as store hashes under lawdex:law:<id>.
package law

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/normtext/lawdex/internal/db"
	"github.com/normtext/lawdex/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "law:"

// store is the consumer interface for law records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores and loads law records.
type Repo struct {
	store store
}

// New creates a law repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Get loads one law record. Returns domain.ErrNotFound for unknown ids.
func (r *Repo) Get(ctx context.Context, id int64) (domain.Law, error) {
	fields, err := r.store.HGetAll(ctx, key(id))
	if err != nil {
		return domain.Law{}, fmt.Errorf("get law %d: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Law{}, fmt.Errorf("law %d: %w", id, domain.ErrNotFound)
	}
	return parseHashFields(id, fields), nil
}

// GetMulti loads many law records in one round-trip. Unknown ids are
// silently skipped; the index may briefly reference deleted laws.
func (r *Repo) GetMulti(ctx context.Context, ids []int64) ([]domain.Law, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get laws: %w", err)
	}

	laws := make([]domain.Law, 0, len(ids))
	for i, fields := range maps {
		if len(fields) == 0 {
			continue
		}
		laws = append(laws, parseHashFields(ids[i], fields))
	}
	return laws, nil
}

// Put stores a single law record.
func (r *Repo) Put(ctx context.Context, law domain.Law) error {
	if err := r.store.HSet(ctx, key(law.ID), buildHashFields(law)); err != nil {
		return fmt.Errorf("put law %d: %w", law.ID, err)
	}
	return nil
}

// PutMulti bulk-stores law records. A storage failure is reported as a
// persistence failure; callers treat it as partial, not fatal.
func (r *Repo) PutMulti(ctx context.Context, laws []domain.Law) error {
	items := make([]db.HashSetItem, len(laws))
	for i, law := range laws {
		items[i] = db.HashSetItem{Key: key(law.ID), Fields: buildHashFields(law)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("bulk insert %d laws: %w: %v", len(laws), domain.ErrPersistence, err)
	}
	return nil
}

// ListIDs returns the ids of all stored laws.
func (r *Repo) ListIDs(ctx context.Context) ([]int64, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan laws: %w", err)
	}
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, keyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// All loads every stored law record. The lexical scorer walks the full
// corpus, mirroring a keyword table scan.
func (r *Repo) All(ctx context.Context) ([]domain.Law, error) {
	ids, err := r.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return r.GetMulti(ctx, ids)
}
