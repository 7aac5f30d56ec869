package domain

import (
	"context"
	"errors"
	"time"

	"github.com/adscopehq/adscope/pkg/db/pagination"
)

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrUserMismatch      = errors.New("user_mismatch")
	ErrInvalidReportType = errors.New("invalid_report_type")
	ErrRecordUsageFailed = errors.New("failed_to_record_usage")
)

// CheckLimitRequest asks for the caller's quota snapshot. Limit, when
// set, overrides the entitlement-derived weekly limit.
type CheckLimitRequest struct {
	UserID string `form:"user_id"`
	Limit  *int   `form:"limit"`
}

// Snapshot describes a user's standing against the current week's quota.
type Snapshot struct {
	CurrentUsage int64     `json:"current_usage"`
	Limit        int64     `json:"limit"`
	Remaining    int64     `json:"remaining"`
	CanGenerate  bool      `json:"can_generate"`
	WeekStart    time.Time `json:"week_start"`
	ResetsAt     time.Time `json:"resets_at"`
}

// RecordUsageRequest appends one generation event to the ledger.
type RecordUsageRequest struct {
	UserID     string     `json:"user_id"`
	ReportType ReportType `json:"report_type" binding:"required"`
	AccountID  *string    `json:"account_id"`
	TimeRange  *string    `json:"time_range"`
	CampaignID *string    `json:"campaign_id"`
}

type RecordUsageResponse struct {
	ID        string    `json:"id"`
	WeekStart time.Time `json:"week_start"`
}

// ListUsageRequest pages through the caller's ledger rows, newest first.
type ListUsageRequest struct {
	UserID string `form:"user_id"`
	pagination.Pagination
}

type ListUsageResponse struct {
	Records  []UsageRecord       `json:"records"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	CheckLimit(ctx context.Context, req CheckLimitRequest) (*Snapshot, error)
	RecordUsage(ctx context.Context, req RecordUsageRequest) (*RecordUsageResponse, error)
	List(ctx context.Context, req ListUsageRequest) (*ListUsageResponse, error)
}
