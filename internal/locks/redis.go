package locks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/m3rciful/deskbot/core/logger"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder can keep the lock.
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

// Redis locks keys with SET NX PX and a random token, so only the holder can release.
// It lets several bot replicas share per-user serialization.
type Redis struct {
	client goredis.Cmdable
	opts   RedisOptions
}

func NewRedis(client goredis.Cmdable, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "deskbot:lock:user:"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Retry <= 0 {
		opts.Retry = 50 * time.Millisecond
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) key(id int64) string {
	return r.opts.Prefix + strconv.FormatInt(id, 10)
}

func (r *Redis) Lock(ctx context.Context, id int64) (func(), error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := r.key(id)
	token := uuid.NewString()

	waitCtx, cancel := withWait(ctx, r.opts.Wait)
	defer cancel()

	for {
		ok, err := r.client.SetNX(waitCtx, key, token, r.opts.TTL).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, timeoutErr(ctx)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(r.opts.Retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, timeoutErr(ctx)
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.client, []string{key}, token).Err(); err != nil {
				logger.Warn(ctx, "locks", "lock.release_failed",
					slog.Int64("user_id", id),
					slog.String("err", err.Error()),
				)
			}
		})
	}, nil
}
