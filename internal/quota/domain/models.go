// Package domain contains persistence models for the weekly usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReportType identifies the kind of generated report a usage row accounts for.
type ReportType string

const (
	ReportTypeAIAnalysis     ReportType = "ai_analysis"
	ReportTypeWeeklyAnalysis ReportType = "weekly_analysis"
)

// Valid reports whether the report type is a known value.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeAIAnalysis, ReportTypeWeeklyAnalysis:
		return true
	}
	return false
}

// UsageRecord is one row of the append-only report-generation ledger.
// Rows are never updated or deleted.
type UsageRecord struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"not null;index:idx_report_usage_user_week"`
	ReportType ReportType   `gorm:"type:text;not null"`
	AccountID  *string      `gorm:"type:text"`
	TimeRange  *string      `gorm:"type:text"`
	CampaignID *string      `gorm:"type:text"`
	WeekStart  time.Time    `gorm:"not null;index:idx_report_usage_user_week"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "report_usage" }
