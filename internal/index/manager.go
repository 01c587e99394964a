package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/metrics"
)

// RebuildLockName is the advisory lease serializing index rebuilds.
const RebuildLockName = "index_update_lock"

// RebuildLeaseTTL is the stale-lease timeout: a rebuilder that died holding
// the lease stops blocking others after this long.
const RebuildLeaseTTL = 300 * time.Second

// EmbeddingLister supplies the full optimized-embedding set for a rebuild.
type EmbeddingLister interface {
	ListOptimized(ctx context.Context) ([]Entry, error)
}

// Leaser is the advisory lock used to serialize rebuilds. TryAcquire is
// non-blocking: it fails immediately when a non-expired lease is held.
type Leaser interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, name, token string) error
}

// Manager owns the live index. Reads go through an RWMutex and see the last
// successfully persisted index; Rebuild constructs a replacement from the
// embedding store, persists it atomically, and swaps it in. The index is a
// derived cache: it can always be reconstructed from the embedding store.
type Manager struct {
	path       string
	dim        int
	embeddings EmbeddingLister
	leases     Leaser
	logger     *zap.Logger

	mu  sync.RWMutex
	idx *Flat
}

// NewManager creates an index manager. Call Load before serving searches.
func NewManager(path string, dim int, embeddings EmbeddingLister, leases Leaser, logger *zap.Logger) *Manager {
	return &Manager{
		path:       path,
		dim:        dim,
		embeddings: embeddings,
		leases:     leases,
		logger:     logger,
	}
}

// Load reads the persisted index from disk. A missing file yields an empty
// index; the first rebuild creates it.
func (m *Manager) Load() error {
	idx, err := ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info("No index file yet, starting empty", zap.String("path", m.path))
			idx, err = Build(m.dim, nil)
		}
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
	}
	if idx.Dim() != m.dim {
		return fmt.Errorf("load index: file has dim %d, configured %d: %w",
			idx.Dim(), m.dim, domain.ErrDimensionMismatch)
	}

	m.mu.Lock()
	m.idx = idx
	m.mu.Unlock()

	metrics.IndexSize.Set(float64(idx.Len()))
	return nil
}

// Search runs k-NN over the currently loaded index. Concurrent with
// rebuilds; a search may briefly see the previous index.
func (m *Manager) Search(query []float32, k int) ([]Neighbor, error) {
	m.mu.RLock()
	idx := m.idx
	m.mu.RUnlock()

	if idx == nil {
		return nil, fmt.Errorf("search: index not loaded")
	}
	return idx.Search(query, k)
}

// Len returns the number of vectors in the live index.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.idx == nil {
		return 0
	}
	return m.idx.Len()
}

// Rebuild replaces the index from the full optimized-embedding set, under
// the index_update_lock lease. Fails fast with ErrRebuildInProgress when the
// lease is held. On any failure the previous index, in memory and on disk,
// stays in effect.
func (m *Manager) Rebuild(ctx context.Context) error {
	token, err := m.leases.TryAcquire(ctx, RebuildLockName, RebuildLeaseTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseHeld) {
			return domain.ErrRebuildInProgress
		}
		return fmt.Errorf("acquire %s: %w", RebuildLockName, err)
	}
	defer func() {
		if err := m.leases.Release(ctx, RebuildLockName, token); err != nil {
			m.logger.Warn("Failed to release rebuild lease", zap.Error(err))
		}
	}()

	start := time.Now()

	entries, err := m.embeddings.ListOptimized(ctx)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list optimized embeddings: %w", err)
	}

	idx, err := Build(m.dim, entries)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rebuild index: %w", err)
	}

	if err := idx.WriteFile(m.path); err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("persist index: %w", err)
	}

	m.mu.Lock()
	m.idx = idx
	m.mu.Unlock()

	metrics.IndexRebuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
	metrics.IndexSize.Set(float64(idx.Len()))

	m.logger.Info("Rebuilt vector index",
		zap.Int("vectors", idx.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
