package service

import (
	"context"
	"strings"
	"time"

	"github.com/adscopehq/adscope/internal/clock"
	"github.com/adscopehq/adscope/internal/config"
	"github.com/adscopehq/adscope/internal/observability/metrics"
	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	subscriptiondomain "github.com/adscopehq/adscope/internal/subscription/domain"
	"github.com/adscopehq/adscope/internal/userctx"
	"github.com/adscopehq/adscope/pkg/db/option"
	"github.com/adscopehq/adscope/pkg/db/pagination"
	"github.com/adscopehq/adscope/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Subscriptions subscriptiondomain.Service
	Policy        *config.QuotaPolicyHolder
	Clock         clock.Clock
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	subscriptions subscriptiondomain.Service
	policy        *config.QuotaPolicyHolder
	clock         clock.Clock
	metrics       *metrics.Metrics
	repo          repository.Repository[quotadomain.UsageRecord]
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("quota.service"),
		genID:         p.GenID,
		subscriptions: p.Subscriptions,
		policy:        p.Policy,
		clock:         p.Clock,
		metrics:       p.Metrics,
		repo:          repository.ProvideStore[quotadomain.UsageRecord](p.DB),
	}
}

// CheckLimit reports the caller's standing against the current week's quota.
// Exhaustion is not an error: the snapshot carries can_generate=false and the
// caller decides what to do with it.
func (s *Service) CheckLimit(ctx context.Context, req quotadomain.CheckLimitRequest) (*quotadomain.Snapshot, error) {
	userID, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	limit := s.effectiveLimit(ctx, userID, req.Limit)
	weekStart := quotadomain.WeekStartAt(s.clock.Now())

	usage, err := s.repo.Count(ctx, &quotadomain.UsageRecord{
		UserID:    userID,
		WeekStart: weekStart,
	})
	if err != nil {
		s.log.Error("count weekly usage", zap.Error(err), zap.Int64("user_id", userID.Int64()))
		return nil, err
	}

	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}

	snapshot := &quotadomain.Snapshot{
		CurrentUsage: usage,
		Limit:        limit,
		Remaining:    remaining,
		CanGenerate:  usage < limit,
		WeekStart:    weekStart,
		ResetsAt:     weekStart.AddDate(0, 0, 7),
	}
	s.metrics.RecordQuotaCheck(ctx, snapshot.CanGenerate)
	return snapshot, nil
}

// RecordUsage appends one generation event to the ledger. Callers are
// expected to have consulted CheckLimit first; the two calls are not atomic,
// so a burst of concurrent requests can land a few rows past the limit.
// The limit is advisory rather than a billing boundary, so that is accepted.
func (s *Service) RecordUsage(ctx context.Context, req quotadomain.RecordUsageRequest) (*quotadomain.RecordUsageResponse, error) {
	userID, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !req.ReportType.Valid() {
		return nil, quotadomain.ErrInvalidReportType
	}

	record := &quotadomain.UsageRecord{
		ID:         s.genID.Generate(),
		UserID:     userID,
		ReportType: req.ReportType,
		AccountID:  req.AccountID,
		TimeRange:  req.TimeRange,
		CampaignID: req.CampaignID,
		WeekStart:  quotadomain.WeekStartAt(s.clock.Now()),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.log.Error("record usage",
			zap.Error(err),
			zap.Int64("user_id", userID.Int64()),
			zap.String("report_type", string(req.ReportType)),
		)
		return nil, quotadomain.ErrRecordUsageFailed
	}

	s.metrics.RecordUsage(ctx, string(req.ReportType))
	return &quotadomain.RecordUsageResponse{
		ID:        record.ID.String(),
		WeekStart: record.WeekStart,
	}, nil
}

func (s *Service) List(ctx context.Context, req quotadomain.ListUsageRequest) (*quotadomain.ListUsageResponse, error) {
	userID, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	records, err := s.repo.Find(ctx, &quotadomain.UsageRecord{UserID: userID},
		option.WithSortBy(option.QuerySortBy{Default: "created_at", Desc: true}),
		option.ApplyPagination(req.Pagination),
	)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, size, func(r *quotadomain.UsageRecord) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
		return token
	})

	if len(records) > size {
		records = records[:size]
	}
	out := make([]quotadomain.UsageRecord, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}

	return &quotadomain.ListUsageResponse{
		Records:  out,
		PageInfo: *pageInfo,
	}, nil
}

// authorize resolves the effective user: the authenticated identity from the
// request context, checked against the user_id the payload names, if any.
func (s *Service) authorize(ctx context.Context, requested string) (snowflake.ID, error) {
	authed, ok := userctx.UserIDFromContext(ctx)
	if !ok || authed == 0 {
		return 0, quotadomain.ErrInvalidUser
	}

	if trimmed := strings.TrimSpace(requested); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return 0, quotadomain.ErrInvalidUser
		}
		if parsed != authed {
			return 0, quotadomain.ErrUserMismatch
		}
	}
	return authed, nil
}

// effectiveLimit picks the weekly limit for the user. An explicit override
// wins, then the entitlement tier. Entitlement lookup failures degrade to the
// baseline so quota checks stay available when the subscription store is not.
func (s *Service) effectiveLimit(ctx context.Context, userID snowflake.ID, override *int) int64 {
	if override != nil && *override > 0 {
		return int64(*override)
	}

	policy := s.policy.Get()
	premium, err := s.subscriptions.HasActive(ctx, userID)
	if err != nil {
		s.log.Warn("entitlement lookup failed, assuming baseline",
			zap.Error(err),
			zap.Int64("user_id", userID.Int64()),
		)
		return int64(policy.BaselineWeeklyLimit)
	}
	if premium {
		return int64(policy.PremiumWeeklyLimit)
	}
	return int64(policy.BaselineWeeklyLimit)
}
