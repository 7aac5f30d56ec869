package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrUserMismatch = errors.New("user_mismatch")
	ErrInvalidKey   = errors.New("invalid_cache_key")
	ErrCacheMiss    = errors.New("cache_miss")
)

// Key identifies one cached report slot. CampaignID is empty for
// account-level reports and AccountID may be AggregateAccountID for
// the cross-account dashboard summary.
type Key struct {
	AccountID  string `form:"account_id" json:"account_id" binding:"required"`
	TimeRange  string `form:"time_range" json:"time_range" binding:"required"`
	CampaignID string `form:"campaign_id" json:"campaign_id"`
}

type GetRequest struct {
	UserID string `form:"user_id"`
	Key
}

type SetRequest struct {
	UserID string `json:"user_id"`
	Key

	ReportContent     string          `json:"report_content"`
	ReportType        string          `json:"report_type"`
	ActiveCampaigns   *int            `json:"active_campaigns"`
	AverageRoas       *float64        `json:"average_roas"`
	RecentActivity    json.RawMessage `json:"recent_activity"`
	PerformanceCharts json.RawMessage `json:"performance_charts"`
}

// CachedReportView is the read shape handed back on a cache hit.
type CachedReportView struct {
	ReportContent     string          `json:"report_content"`
	ReportType        string          `json:"report_type"`
	ActiveCampaigns   *int            `json:"active_campaigns,omitempty"`
	AverageRoas       *float64        `json:"average_roas,omitempty"`
	RecentActivity    json.RawMessage `json:"recent_activity,omitempty"`
	PerformanceCharts json.RawMessage `json:"performance_charts,omitempty"`
	ExpiresAt         time.Time       `json:"expires_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Service interface {
	// Get returns the cached report for the key, or ErrCacheMiss when the
	// slot is empty or past its expiry. Expiry is decided at read time.
	Get(ctx context.Context, req GetRequest) (*CachedReportView, error)

	// Set stores or replaces the report in the key's slot. The boolean
	// reports whether the write landed; storage failures are absorbed.
	Set(ctx context.Context, req SetRequest) (bool, error)

	// ClearUser drops every cached report the user owns.
	ClearUser(ctx context.Context, userID string) (bool, error)

	// CleanupExpired reclaims rows whose expiry has passed and returns the
	// number removed.
	CleanupExpired(ctx context.Context) (int64, error)
}
