package service

import (
	"context"
	"errors"
	"strings"

	"github.com/adscopehq/adscope/internal/clock"
	"github.com/adscopehq/adscope/internal/config"
	"github.com/adscopehq/adscope/internal/observability/metrics"
	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
	"github.com/adscopehq/adscope/internal/userctx"
	"github.com/adscopehq/adscope/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Policy  *config.QuotaPolicyHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	policy  *config.QuotaPolicyHolder
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) reportcachedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("reportcache.service"),
		genID:   p.GenID,
		policy:  p.Policy,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, req reportcachedomain.GetRequest) (*reportcachedomain.CachedReportView, error) {
	userID, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	key, err := normalizeKey(req.Key)
	if err != nil {
		return nil, err
	}

	var row reportcachedomain.CachedReport
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND account_id = ? AND time_range = ? AND campaign_id = ?",
			userID, key.AccountID, key.TimeRange, key.CampaignID).
		First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// A broken cache read degrades to a miss; callers regenerate.
			s.log.Warn("cache lookup failed", zap.Error(err), zap.Int64("user_id", userID.Int64()))
		}
		s.metrics.RecordCacheLookup(ctx, false)
		return nil, reportcachedomain.ErrCacheMiss
	}
	if !s.clock.Now().Before(row.ExpiresAt) {
		s.metrics.RecordCacheLookup(ctx, false)
		return nil, reportcachedomain.ErrCacheMiss
	}

	s.metrics.RecordCacheLookup(ctx, true)
	return &reportcachedomain.CachedReportView{
		ReportContent:     row.ReportContent,
		ReportType:        row.ReportType,
		ActiveCampaigns:   row.ActiveCampaigns,
		AverageRoas:       row.AverageRoas,
		RecentActivity:    []byte(row.RecentActivity),
		PerformanceCharts: []byte(row.PerformanceCharts),
		ExpiresAt:         row.ExpiresAt,
		CreatedAt:         row.CreatedAt,
	}, nil
}

func (s *Service) Set(ctx context.Context, req reportcachedomain.SetRequest) (bool, error) {
	userID, err := s.authorize(ctx, req.UserID)
	if err != nil {
		return false, err
	}
	key, err := normalizeKey(req.Key)
	if err != nil {
		return false, err
	}
	reportType := strings.TrimSpace(req.ReportType)
	if reportType == "" {
		reportType = "regular"
	}

	now := s.clock.Now()
	row := reportcachedomain.CachedReport{
		ID:                s.genID.Generate(),
		UserID:            userID,
		AccountID:         key.AccountID,
		TimeRange:         key.TimeRange,
		CampaignID:        key.CampaignID,
		ReportContent:     req.ReportContent,
		ReportType:        reportType,
		ActiveCampaigns:   req.ActiveCampaigns,
		AverageRoas:       req.AverageRoas,
		RecentActivity:    datatypes.JSON(req.RecentActivity),
		PerformanceCharts: datatypes.JSON(req.PerformanceCharts),
		ExpiresAt:         now.Add(s.policy.Get().CacheTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "account_id"},
			{Name: "time_range"},
			{Name: "campaign_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"report_content",
			"report_type",
			"active_campaigns",
			"average_roas",
			"recent_activity",
			"performance_charts",
			"expires_at",
			"updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a write race; the competing row is as fresh as ours.
			return true, nil
		}
		// Cache writes are best effort. The report was already produced;
		// losing the copy only costs a regeneration later.
		s.log.Warn("cache write failed",
			zap.Error(err),
			zap.Int64("user_id", userID.Int64()),
			zap.String("account_id", key.AccountID),
		)
		return false, nil
	}
	return true, nil
}

func (s *Service) ClearUser(ctx context.Context, requested string) (bool, error) {
	userID, err := s.authorize(ctx, requested)
	if err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&reportcachedomain.CachedReport{})
	if result.Error != nil {
		s.log.Warn("cache clear failed", zap.Error(result.Error), zap.Int64("user_id", userID.Int64()))
		return false, nil
	}
	return true, nil
}

func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.clock.Now()).
		Delete(&reportcachedomain.CachedReport{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *Service) authorize(ctx context.Context, requested string) (snowflake.ID, error) {
	authed, ok := userctx.UserIDFromContext(ctx)
	if !ok || authed == 0 {
		return 0, reportcachedomain.ErrInvalidUser
	}

	if trimmed := strings.TrimSpace(requested); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil {
			return 0, reportcachedomain.ErrInvalidUser
		}
		if parsed != authed {
			return 0, reportcachedomain.ErrUserMismatch
		}
	}
	return authed, nil
}

func normalizeKey(key reportcachedomain.Key) (reportcachedomain.Key, error) {
	key.AccountID = strings.TrimSpace(key.AccountID)
	key.TimeRange = strings.TrimSpace(key.TimeRange)
	key.CampaignID = strings.TrimSpace(key.CampaignID)
	if key.AccountID == "" || key.TimeRange == "" {
		return key, reportcachedomain.ErrInvalidKey
	}
	return key, nil
}
