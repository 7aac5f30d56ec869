package reportcache

import (
	"github.com/adscopehq/adscope/internal/reportcache/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reportcache.service",
	fx.Provide(service.NewService),
)
