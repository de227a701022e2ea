package runlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still carries our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	log *logger.Logger
	rdb goredis.UniversalClient
}

func NewRedisLocker(rdb goredis.UniversalClient, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisLocker{rdb: rdb, log: log.With("service", "RedisLocker")}
}

// NewRedisClient dials addr and pings it before handing the client out.
func NewRedisClient(ctx context.Context, addr, password string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, scope string, ttl time.Duration) (Lease, error) {
	if err := validate(scope, ttl); err != nil {
		return nil, err
	}
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis locker not initialized")
	}
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, scope, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", scope, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, scope)
	}
	l.log.Debug("lock acquired", "scope", scope, "ttl", ttl.String())
	return &redisLease{owner: l, scope: scope, token: token}, nil
}

type redisLease struct {
	owner *RedisLocker
	scope string
	token string
}

func (l *redisLease) Scope() string { return l.scope }
func (l *redisLease) Token() string { return l.token }

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.owner.rdb, []string{l.scope}, l.token).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis release %s: %w", l.scope, err)
	}
	if n == 0 {
		l.owner.log.Warn("lock already expired or taken over", "scope", l.scope)
	}
	return nil
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	if err := validateTTL("runlock.Extend", ttl); err != nil {
		return err
	}
	n, err := extendScript.Run(ctx, l.owner.rdb, []string{l.scope}, l.token, ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis extend %s: %w", l.scope, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLost, l.scope)
	}
	return nil
}
