package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adscopehq/adscope/internal/clock"
	"github.com/adscopehq/adscope/internal/config"
	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	subscriptiondomain "github.com/adscopehq/adscope/internal/subscription/domain"
	"github.com/adscopehq/adscope/internal/userctx"
	"github.com/adscopehq/adscope/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type subscriptionStub struct {
	active bool
	err    error
}

func (s *subscriptionStub) GetActiveByUserID(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.active {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &subscriptiondomain.Subscription{UserID: userID, Status: subscriptiondomain.SubscriptionStatusActive}, nil
}

func (s *subscriptionStub) HasActive(ctx context.Context, userID snowflake.ID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.active, nil
}

func setupQuotaService(t *testing.T, node *snowflake.Node, subs subscriptiondomain.Service, clk clock.Clock, policy config.QuotaPolicy) (quotadomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareQuotaSchema(t, db)

	service := NewService(ServiceParam{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Subscriptions: subs,
		Policy:        config.NewStaticQuotaPolicyHolder(policy),
		Clock:         clk,
	})
	return service, db
}

func prepareQuotaSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE report_usage (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		report_type TEXT NOT NULL,
		account_id TEXT,
		time_range TEXT,
		campaign_id TEXT,
		week_start DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error; err != nil {
		t.Fatalf("create report_usage: %v", err)
	}
	if err := db.Exec(`CREATE INDEX idx_report_usage_user_week
		ON report_usage (user_id, week_start)`).Error; err != nil {
		t.Fatalf("create usage index: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func testPolicy() config.QuotaPolicy {
	return config.QuotaPolicy{
		BaselineWeeklyLimit: 3,
		PremiumWeeklyLimit:  10,
		CacheTTL:            12 * time.Hour,
	}
}

func TestCheckLimitCountsCurrentWeekOnly(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	// Two generations this week, then the clock crosses into the next week.
	for i := 0; i < 2; i++ {
		if _, err := service.RecordUsage(ctx, quotadomain.RecordUsageRequest{
			ReportType: quotadomain.ReportTypeAIAnalysis,
		}); err != nil {
			t.Fatalf("record usage: %v", err)
		}
	}

	snap, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.CurrentUsage != 2 || snap.Remaining != 1 || !snap.CanGenerate {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	wantWeek := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !snap.WeekStart.Equal(wantWeek) {
		t.Fatalf("week start = %v, want %v", snap.WeekStart, wantWeek)
	}
	if !snap.ResetsAt.Equal(wantWeek.AddDate(0, 0, 7)) {
		t.Fatalf("resets at = %v", snap.ResetsAt)
	}

	clk.Advance(7 * 24 * time.Hour)

	snap, err = service.CheckLimit(ctx, quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit after reset: %v", err)
	}
	if snap.CurrentUsage != 0 || snap.Remaining != 3 {
		t.Fatalf("expected fresh week, got %+v", snap)
	}
}

func TestCheckLimitExhaustionIsNotAnError(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	for i := 0; i < 3; i++ {
		if _, err := service.RecordUsage(ctx, quotadomain.RecordUsageRequest{
			ReportType: quotadomain.ReportTypeWeeklyAnalysis,
		}); err != nil {
			t.Fatalf("record usage %d: %v", i, err)
		}
	}

	snap, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.CanGenerate {
		t.Fatalf("expected exhausted quota, got %+v", snap)
	}
	if snap.Remaining != 0 || snap.CurrentUsage != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCheckLimitPremiumTier(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{active: true}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	snap, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.Limit != 10 {
		t.Fatalf("limit = %d, want premium tier 10", snap.Limit)
	}
}

func TestCheckLimitEntitlementFailureFallsBackToBaseline(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	subs := &subscriptionStub{err: errors.New("store unavailable")}
	service, _ := setupQuotaService(t, node, subs, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	snap, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.Limit != 3 {
		t.Fatalf("limit = %d, want baseline 3", snap.Limit)
	}
}

func TestCheckLimitExplicitOverride(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{active: true}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	override := 5
	snap, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{Limit: &override})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.Limit != 5 {
		t.Fatalf("limit = %d, want override 5", snap.Limit)
	}
}

func TestRecordUsageIncrementsByOne(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, db := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	account := "123-456-7890"
	resp, err := service.RecordUsage(ctx, quotadomain.RecordUsageRequest{
		ReportType: quotadomain.ReportTypeAIAnalysis,
		AccountID:  &account,
	})
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected generated record id")
	}
	if !resp.WeekStart.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", resp.WeekStart)
	}

	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM report_usage WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger row, got %d", count)
	}
}

func TestRecordUsageRejectsUnknownReportType(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	_, err := service.RecordUsage(ctx, quotadomain.RecordUsageRequest{ReportType: "csv_export"})
	if !errors.Is(err, quotadomain.ErrInvalidReportType) {
		t.Fatalf("expected invalid report type, got %v", err)
	}
}

func TestAuthorizeRejectsMismatchedUser(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	other := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	otherID := other.String()
	_, err := service.CheckLimit(ctx, quotadomain.CheckLimitRequest{UserID: otherID})
	if !errors.Is(err, quotadomain.ErrUserMismatch) {
		t.Fatalf("expected user mismatch, got %v", err)
	}

	_, err = service.CheckLimit(context.Background(), quotadomain.CheckLimitRequest{})
	if !errors.Is(err, quotadomain.ErrInvalidUser) {
		t.Fatalf("expected invalid user without auth context, got %v", err)
	}
}

func TestUsageIsolationBetweenUsers(t *testing.T) {
	node := mustNode(t)
	alice := node.Generate()
	bob := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, _ := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())

	aliceCtx := userctx.WithUserID(context.Background(), alice)
	for i := 0; i < 3; i++ {
		if _, err := service.RecordUsage(aliceCtx, quotadomain.RecordUsageRequest{
			ReportType: quotadomain.ReportTypeAIAnalysis,
		}); err != nil {
			t.Fatalf("record usage: %v", err)
		}
	}

	snap, err := service.CheckLimit(userctx.WithUserID(context.Background(), bob), quotadomain.CheckLimitRequest{})
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if snap.CurrentUsage != 0 || !snap.CanGenerate {
		t.Fatalf("bob should be untouched by alice's usage: %+v", snap)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	node := mustNode(t)
	userID := node.Generate()
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	service, db := setupQuotaService(t, node, &subscriptionStub{}, clk, testPolicy())
	ctx := userctx.WithUserID(context.Background(), userID)

	base := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := db.Exec(
			`INSERT INTO report_usage (id, user_id, report_type, week_start, created_at) VALUES (?, ?, ?, ?, ?)`,
			node.Generate(), userID, "ai_analysis",
			time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			base.Add(time.Duration(i)*time.Minute),
		).Error; err != nil {
			t.Fatalf("seed row %d: %v", i, err)
		}
	}

	first, err := service.List(ctx, quotadomain.ListUsageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(first.Records))
	}
	for i := 1; i < len(first.Records); i++ {
		if first.Records[i].CreatedAt.After(first.Records[i-1].CreatedAt) {
			t.Fatalf("records not newest first at index %d", i)
		}
	}

	page, err := service.List(ctx, quotadomain.ListUsageRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Records) != 2 || !page.PageInfo.HasMore || page.PageInfo.NextPageToken == "" {
		t.Fatalf("unexpected first page: %d records, info %+v", len(page.Records), page.PageInfo)
	}

	rest, err := service.List(ctx, quotadomain.ListUsageRequest{
		Pagination: pagination.Pagination{PageSize: 10, PageToken: page.PageInfo.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest.Records) != 3 || rest.PageInfo.HasMore {
		t.Fatalf("unexpected second page: %d records, info %+v", len(rest.Records), rest.PageInfo)
	}
}
