package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/adscopehq/adscope/internal/config"
)

const keyReportUser = "report:generate:user:%s"

// ReportLimiter throttles per-user report generation. A nil limiter means
// rate limiting is disabled and every request passes.
type ReportLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewReportLimiter(cfg config.Config) (*ReportLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ReportRate <= 0 || limitCfg.ReportBurst <= 0 {
		return nil, errors.New("report rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ReportLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.ReportRate,
		burst:   limitCfg.ReportBurst,
	}, nil
}

func (l *ReportLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ReportLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyReportUser, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
