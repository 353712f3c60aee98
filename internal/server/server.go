package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/themeleon/themeleon/internal/checkout"
	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	"github.com/themeleon/themeleon/internal/entitlement"
	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
	"github.com/themeleon/themeleon/internal/identity"
	"github.com/themeleon/themeleon/internal/ledger"
	"github.com/themeleon/themeleon/internal/migration"
	"github.com/themeleon/themeleon/internal/observability"
	obsmiddleware "github.com/themeleon/themeleon/internal/observability/logger"
	obsmetrics "github.com/themeleon/themeleon/internal/observability/metrics"
	obstracing "github.com/themeleon/themeleon/internal/observability/tracing"
	"github.com/themeleon/themeleon/internal/payment"
	paymentdomain "github.com/themeleon/themeleon/internal/payment/domain"
	"github.com/themeleon/themeleon/internal/ratelimit"
	"github.com/themeleon/themeleon/internal/theme"
	themedomain "github.com/themeleon/themeleon/internal/theme/domain"
	"github.com/themeleon/themeleon/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const anonymousQuotaCacheTTL = 30 * time.Second

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	observability.Module,
	db.Module,
	migration.Module,
	ledger.Module,
	entitlement.Module,
	theme.Module,
	payment.Module,
	checkout.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(newResolver),
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

func newResolver(cfg config.Config) *identity.Resolver {
	return identity.NewResolver(cfg.AuthJWTSecret)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	resolver       *identity.Resolver
	themeSvc       themedomain.Service
	entitlementSvc entdomain.Service
	paymentSvc     paymentdomain.Service
	checkoutSvc    checkout.Service
	limiter        *ratelimit.RequestLimiter
	quotaCache     *quotaCache
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	Resolver       *identity.Resolver
	ThemeSvc       themedomain.Service
	EntitlementSvc entdomain.Service
	PaymentSvc     paymentdomain.Service
	CheckoutSvc    checkout.Service
	Limiter        *ratelimit.RequestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("server"),
		resolver:       p.Resolver,
		themeSvc:       p.ThemeSvc,
		entitlementSvc: p.EntitlementSvc,
		paymentSvc:     p.PaymentSvc,
		checkoutSvc:    p.CheckoutSvc,
		limiter:        p.Limiter,
		quotaCache:     newQuotaCache(anonymousQuotaCacheTTL),
	}

	svc.quotaCache.Subscribe(func(address string) {
		svc.log.Debug("anonymous quota cache invalidated", zap.String("address", address))
	})

	svc.registerAPIRoutes()

	if warnings := p.Cfg.Validate(); len(warnings) > 0 {
		for _, warn := range warnings {
			svc.log.Warn("incomplete configuration", zap.Error(warn))
		}
	}

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", CORSMiddleware())

	api.POST("/generate-theme", s.GenerateTheme)
	api.OPTIONS("/generate-theme", noContent)

	api.GET("/check-ip-limit", s.CheckIPLimit)
	api.OPTIONS("/check-ip-limit", noContent)

	api.POST("/create-checkout", s.CreateCheckout)
	api.OPTIONS("/create-checkout", noContent)

	// Webhooks come from Stripe, not a browser; no preflight needed.
	api.POST("/stripe-webhook", s.HandleStripeWebhook)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
