// Package domain contains persistence models for subscription entitlements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
// Rows are written by the billing integration; this service only reads them.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusTrialing SubscriptionStatus = "TRIALING"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusEnded    SubscriptionStatus = "ENDED"
)

// Subscription captures a user's premium entitlement.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey"`
	UserID           snowflake.ID       `gorm:"not null;index"`
	Status           SubscriptionStatus `gorm:"type:text;not null"`
	CurrentPeriodEnd *time.Time         `gorm:""`
	Metadata         datatypes.JSONMap  `gorm:"type:jsonb"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
