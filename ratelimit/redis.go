package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chronofact/chronofact/chronoerr"
)

type redisLimiter struct {
	rdb       *goredis.Client
	key       string
	ratePerMin int
}

// NewRedisLimiter shares a per-minute request count across every process
// pointed at the same Redis instance, using a fixed one-minute INCR/EXPIRE
// window keyed by the current minute bucket.
func NewRedisLimiter(url string, ratePerMin int, key string) (Limiter, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	if len(key) == 0 {
		key = "chronofact:llm_rate"
	}

	return &redisLimiter{rdb: rdb, key: key, ratePerMin: ratePerMin}, nil
}

func (l *redisLimiter) Wait(ctx context.Context) error {
	for {
		windowKey := fmt.Sprintf("%s:%d", l.key, time.Now().Unix()/60)

		count, err := l.rdb.Incr(ctx, windowKey).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
		}
		if count == 1 {
			l.rdb.Expire(ctx, windowKey, 90*time.Second)
		}

		if count <= int64(l.ratePerMin) {
			return nil
		}

		secIntoMinute := time.Now().Unix() % 60
		wait := time.Duration(60-secIntoMinute) * time.Second

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", chronoerr.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}
