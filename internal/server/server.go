package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adscopehq/adscope/internal/config"
	"github.com/adscopehq/adscope/internal/observability"
	obsmiddleware "github.com/adscopehq/adscope/internal/observability/logger"
	obsmetrics "github.com/adscopehq/adscope/internal/observability/metrics"
	obstracing "github.com/adscopehq/adscope/internal/observability/tracing"
	"github.com/adscopehq/adscope/internal/quota"
	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	"github.com/adscopehq/adscope/internal/ratelimit"
	"github.com/adscopehq/adscope/internal/reportcache"
	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
	"github.com/adscopehq/adscope/internal/subscription"
	subscriptiondomain "github.com/adscopehq/adscope/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	subscription.Module,
	quota.Module,
	reportcache.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	quotaSvc        quotadomain.Service
	reportCacheSvc  reportcachedomain.Service
	subscriptionSvc subscriptiondomain.Service
	reportLimiter   *ratelimit.ReportLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	QuotaSvc        quotadomain.Service
	ReportCacheSvc  reportcachedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ReportLimiter   *ratelimit.ReportLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		quotaSvc:        p.QuotaSvc,
		reportCacheSvc:  p.ReportCacheSvc,
		subscriptionSvc: p.SubscriptionSvc,
		reportLimiter:   p.ReportLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Usage quota --------
	api.GET("/usage/limit", s.CheckUsageLimit)
	api.POST("/usage", s.ReportGenerateRateLimit(), s.RecordUsage)
	api.GET("/usage", s.ListUsage)

	// -------- Report cache --------
	api.GET("/reports/cache", s.GetCachedReport)
	api.POST("/reports/cache", s.SetCachedReport)
	api.DELETE("/reports/cache", s.ClearCachedReports)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	admin.POST("/cache/cleanup", s.CleanupExpiredReports)
}
