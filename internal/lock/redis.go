package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

// release deletes the key only if it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type cmdable interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	redis.Scripter
}

// Redis is a Locker backed by a single SET NX key with a TTL, so several
// service instances can share one ledger.
type Redis struct {
	client cmdable
	key    string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	log    *slog.Logger
}

// RedisOptions configure NewRedis.
type RedisOptions struct {
	Key   string
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

func NewRedis(client cmdable, o RedisOptions, logger *slog.Logger) *Redis {
	if o.Key == "" {
		o.Key = "fuelsplit:ledger:lock"
	}
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 3 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 25 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, key: o.Key, ttl: o.TTL, wait: o.Wait, retry: o.Retry, log: logger}
}

// Dial parses a redis URL and verifies connectivity.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

func (r *Redis) Lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	token := uuid.NewString()
	t := time.NewTicker(r.retry)
	defer t.Stop()
	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: acquire lock: %v", errs.ErrStoreUnavailable, err)
		}
		if ok {
			return func() { r.unlock(token) }, nil
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: ledger busy: %v", errs.ErrConflict, ctx.Err())
		}
	}
}

// Ready pings the redis server.
func (r *Redis) Ready(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) unlock(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := release.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.log.Warn("release ledger lock", "key", r.key, "err", err)
	}
}
