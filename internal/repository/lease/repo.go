// Package lease implements named advisory locks as store keys with a TTL.
// Acquisition is non-blocking; expiry doubles as the stale-lock override, so
// a crashed holder stops blocking others once its lease runs out.
package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/normtext/lawdex/internal/db"
	"github.com/normtext/lawdex/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "lease:"

// store is the consumer interface for leases (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Repo hands out advisory leases.
type Repo struct {
	store store
}

// New creates a lease repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func key(name string) string {
	return keyPrefix + name
}

// TryAcquire attempts to take the named lease for ttl. It never blocks:
// when a non-expired holder exists it fails immediately with
// domain.ErrLeaseHeld. The returned token identifies this holder and is
// required for Release.
func (r *Repo) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	ok, err := r.store.SetNX(ctx, key(name), []byte(token), ttl)
	if err != nil {
		return "", fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("lease %s: %w", name, domain.ErrLeaseHeld)
	}
	return token, nil
}

// Release frees the named lease if it is still held by token. Releasing an
// expired or foreign lease is a no-op: the lease may have timed out and been
// taken over since.
func (r *Repo) Release(ctx context.Context, name, token string) error {
	k := key(name)
	current, err := r.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	if string(current) != token {
		return nil
	}
	if err := r.store.Del(ctx, k); err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lease token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
