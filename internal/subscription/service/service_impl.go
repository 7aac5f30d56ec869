package service

import (
	"context"
	"errors"

	subscriptiondomain "github.com/adscopehq/adscope/internal/subscription/domain"
	"github.com/adscopehq/adscope/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo repository.Repository[subscriptiondomain.Subscription]
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("subscription.service"),
		repo: repository.ProvideStore[subscriptiondomain.Subscription](p.DB),
	}
}

func (s *Service) GetActiveByUserID(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidUser
	}

	record, err := s.repo.FindOne(ctx, &subscriptiondomain.Subscription{
		UserID: userID,
		Status: subscriptiondomain.SubscriptionStatusActive,
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return record, nil
}

func (s *Service) HasActive(ctx context.Context, userID snowflake.ID) (bool, error) {
	sub, err := s.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub != nil, nil
}
