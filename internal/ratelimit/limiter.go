package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/themeleon/themeleon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyAnonymousRequest = "themeleon:anon:%s"

// Anonymous callers get a small steady allowance with a burst headroom.
const (
	defaultAnonymousRate  = 0.5
	defaultAnonymousBurst = 5
)

// RequestLimiter throttles anonymous requests per source address. A nil
// limiter is valid and allows everything, so the server works without redis.
type RequestLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewRequestLimiter(cfg config.Config, log *zap.Logger) *RequestLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	log.Named("ratelimit").Info("anonymous rate limiter enabled", zap.String("addr", addr))

	return &RequestLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    defaultAnonymousRate,
		burst:   defaultAnonymousBurst,
	}
}

func (l *RequestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *RequestLimiter) AllowAddress(ctx context.Context, address string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAnonymousRequest, strings.TrimSpace(address)), l.rate, l.burst)
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewRequestLimiter),
)
