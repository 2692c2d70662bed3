package roomlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/pkg/logger"
	"github.com/capitalize-ai/chatrooms/pkg/metrics"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a RedisLocker.
type RedisOptions struct {
	Prefix       string
	TTL          time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *logger.Logger
}

// RedisLocker is a Locker shared by every instance connected to the same
// Redis. A lock key holds a per-holder token and expires after TTL, so the
// TTL must exceed the longest critical section.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisLocker creates a RedisLocker with defaults for unset options.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "chatrooms:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 3 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &RedisLocker{client: client, opts: opts}
}

func (l *RedisLocker) WithRoomLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error {
	key := l.opts.Prefix + roomID
	token := uuid.NewString()

	start := time.Now()
	if err := l.acquire(ctx, key, token); err != nil {
		result := "error"
		switch {
		case err == ErrLockTimeout:
			result = "timeout"
		case ctx.Err() != nil:
			result = "canceled"
		}
		metrics.RecordLockWait(result, time.Since(start).Seconds())
		return err
	}
	metrics.RecordLockWait("acquired", time.Since(start).Seconds())
	metrics.RoomLocksActive.Inc()

	defer func() {
		metrics.RoomLocksActive.Dec()
		l.release(ctx, key, token)
	}()

	return fn(ctx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.opts.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
	}
	defer cancel()

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.opts.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return fmt.Errorf("acquire room lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrLockTimeout
		}
	}
}

// release deletes the lock if this holder still owns it. A failed release
// leaves the key to expire after TTL.
func (l *RedisLocker) release(ctx context.Context, key, token string) {
	// Release even when ctx is already done.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
		metrics.LockReleaseFailures.Inc()
		l.opts.Logger.Error("failed to release room lock",
			zap.String("key", key),
			zap.Duration("expires_in", l.opts.TTL),
			zap.Error(err),
		)
	}
}

var _ Locker = (*RedisLocker)(nil)
