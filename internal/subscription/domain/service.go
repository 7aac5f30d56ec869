package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// GetActiveByUserID returns the user's ACTIVE subscription.
	// A user has at most one ACTIVE row at a time.
	GetActiveByUserID(ctx context.Context, userID snowflake.ID) (*Subscription, error)

	// HasActive reports whether the user holds an ACTIVE subscription.
	HasActive(ctx context.Context, userID snowflake.ID) (bool, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
)
