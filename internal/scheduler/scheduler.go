// Package scheduler runs the periodic reclamation of expired cache rows.
// Expiry itself is enforced at read time; the sweep only frees storage,
// so a missed run never changes what callers observe.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/adscopehq/adscope/internal/clock"
	"github.com/adscopehq/adscope/internal/observability/metrics"
	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log      *zap.Logger
	CacheSvc reportcachedomain.Service
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
	Config   Config           `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	cacheSvc reportcachedomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.CacheSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		cacheSvc: p.CacheSvc,
		metrics:  p.Metrics,
	}, nil
}

// RunOnce performs a single sweep pass.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.SweepTimeout)
	defer cancel()

	start := s.clock.Now()
	removed, err := s.cacheSvc.CleanupExpired(ctx)
	if err != nil {
		s.log.Warn("cache sweep failed", zap.Error(err))
		return err
	}

	s.metrics.RecordCacheSweep(ctx, removed)
	if removed > 0 {
		s.log.Info("cache sweep reclaimed rows",
			zap.Int64("removed", removed),
			zap.Duration("took", s.clock.Now().Sub(start)),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
