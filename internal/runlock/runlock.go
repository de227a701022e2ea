// Package runlock keeps two crawl sessions of one data source from writing at
// the same time.
package runlock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
)

var (
	// ErrHeld is returned when another holder owns the scope.
	ErrHeld = domainagg.NewError(domainagg.CodeConflict, "runlock.Acquire", "scope is held by another session", nil)
	// ErrLost is returned by Extend once the lease expired or changed hands.
	ErrLost = domainagg.NewError(domainagg.CodeConflict, "runlock.Extend", "lease expired or taken over", nil)
)

type Locker interface {
	// Acquire takes scope for ttl. The lease expires on its own if the holder
	// dies without releasing it.
	Acquire(ctx context.Context, scope string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Scope() string
	Token() string
	// Extend pushes the expiry to ttl from now while the lease is still ours.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives the scope back. Releasing an expired or already released
	// lease is a no-op.
	Release(ctx context.Context) error
}

// Scope names the lock of one data source.
func Scope(dataSourceID int16) string {
	return fmt.Sprintf("supersaver:crawl:%d", dataSourceID)
}

func validate(scope string, ttl time.Duration) error {
	if strings.TrimSpace(scope) == "" {
		return domainagg.NewError(domainagg.CodeValidation, "runlock.Acquire", "scope is required", nil)
	}
	return validateTTL("runlock.Acquire", ttl)
}

func validateTTL(op string, ttl time.Duration) error {
	if ttl <= 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "ttl must be positive", nil)
	}
	return nil
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker. Used when no Redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localEntry{}, clock: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, scope string, ttl time.Duration) (Lease, error) {
	if err := validate(scope, ttl); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[scope]; ok && now.Before(cur.expires) {
		return nil, fmt.Errorf("%w: %s", ErrHeld, scope)
	}
	token := uuid.NewString()
	l.held[scope] = localEntry{token: token, expires: now.Add(ttl)}
	return &localLease{owner: l, scope: scope, token: token}, nil
}

type localLease struct {
	owner *LocalLocker
	scope string
	token string
}

func (l *localLease) Scope() string { return l.scope }
func (l *localLease) Token() string { return l.token }

func (l *localLease) Release(_ context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if cur, ok := l.owner.held[l.scope]; ok && cur.token == l.token {
		delete(l.owner.held, l.scope)
	}
	return nil
}

func (l *localLease) Extend(ctx context.Context, ttl time.Duration) error {
	if err := validateTTL("runlock.Extend", ttl); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	now := l.owner.clock()
	cur, ok := l.owner.held[l.scope]
	if !ok || cur.token != l.token || !now.Before(cur.expires) {
		return fmt.Errorf("%w: %s", ErrLost, l.scope)
	}
	l.owner.held[l.scope] = localEntry{token: l.token, expires: now.Add(ttl)}
	return nil
}
