package migration

import (
	"github.com/adscopehq/adscope/internal/config"
	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
	subscriptiondomain "github.com/adscopehq/adscope/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations are written for postgres. Other dialects
		// (sqlite in dev, mysql) get their schema from the models directly.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&subscriptiondomain.Subscription{},
				&quotadomain.UsageRecord{},
				&reportcachedomain.CachedReport{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
