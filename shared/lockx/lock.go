package lockx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lock not held")

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`

type Lock struct {
	Key   string
	Token string
	TTL   time.Duration
}

// Acquire reports false without error when another holder owns key.
func Acquire(ctx context.Context, client redis.Cmdable, key string, ttl time.Duration) (*Lock, bool, error) {
	if client == nil {
		return nil, false, errors.New("redis client not initialized")
	}
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: key, Token: token, TTL: ttl}, true, nil
}

// Refresh extends the lease. It returns ErrNotHeld once the lock expired or
// passed to someone else.
func Refresh(ctx context.Context, client redis.Cmdable, lock *Lock) error {
	if client == nil {
		return errors.New("redis client not initialized")
	}
	if lock == nil {
		return errors.New("lock is nil")
	}
	n, err := client.Eval(ctx, refreshScript, []string{lock.Key}, lock.Token, lock.TTL.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func Release(ctx context.Context, client redis.Cmdable, lock *Lock) error {
	if client == nil {
		return errors.New("redis client not initialized")
	}
	if lock == nil {
		return errors.New("lock is nil")
	}
	return client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Token).Err()
}

// WithLock runs fn while holding key. It reports false, without running fn,
// when the lock is taken.
func WithLock(ctx context.Context, client redis.Cmdable, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	lock, ok, err := Acquire(ctx, client, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = Release(releaseCtx, client, lock)
	}()
	return true, fn(ctx)
}
