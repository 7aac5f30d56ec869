// Package domain contains persistence models for cached ads reports.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AggregateAccountID is the sentinel account identity used when a cached
// report covers all of a user's accounts rather than one of them.
const AggregateAccountID = "dashboard_summary"

// CachedReport is one TTL-bounded report snapshot. At most one row exists
// per (user, account, time range, campaign) key; writes replace in place.
// CampaignID uses the empty string, not NULL, for account-level reports so
// the unique index holds across dialects.
type CachedReport struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"not null;uniqueIndex:uidx_report_cache_key"`
	AccountID  string       `gorm:"type:text;not null;uniqueIndex:uidx_report_cache_key"`
	TimeRange  string       `gorm:"type:text;not null;uniqueIndex:uidx_report_cache_key"`
	CampaignID string       `gorm:"type:text;not null;default:'';uniqueIndex:uidx_report_cache_key"`

	ReportContent     string         `gorm:"type:text;not null"`
	ReportType        string         `gorm:"type:text;not null;default:'regular'"`
	ActiveCampaigns   *int           `gorm:""`
	AverageRoas       *float64       `gorm:""`
	RecentActivity    datatypes.JSON `gorm:"type:json"`
	PerformanceCharts datatypes.JSON `gorm:"type:json"`

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CachedReport) TableName() string { return "ads_report_cache" }
