package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	"github.com/smallbiznis/escrow/internal/auth"
	"github.com/smallbiznis/escrow/internal/config"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	"github.com/smallbiznis/escrow/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
	"github.com/smallbiznis/escrow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// NewEngine builds the gin engine with request id, logging, tracing and
// metrics middleware installed.
func NewEngine(p EngineParams) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware(p.Cfg.ServiceName))
	engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	return engine
}

type Params struct {
	fx.In

	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	Engine     *gin.Engine
	Verifier   *auth.Verifier
	OfferSvc   offerdomain.Service
	PaymentSvc paymentdomain.Service
	AuditSvc   auditdomain.Service
	Limiter    ratelimit.Limiter `optional:"true"`
}

type Server struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	engine     *gin.Engine
	verifier   *auth.Verifier
	offerSvc   offerdomain.Service
	paymentSvc paymentdomain.Service
	auditSvc   auditdomain.Service
	limiter    ratelimit.Limiter
}

func NewServer(p Params) *Server {
	limiter := p.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Server{
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		engine:     p.Engine,
		verifier:   p.Verifier,
		offerSvc:   p.OfferSvc,
		paymentSvc: p.PaymentSvc,
		auditSvc:   p.AuditSvc,
		limiter:    limiter,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/:provider", s.HandleWebhook)

	api := s.engine.Group("/api", s.AuthRequired())
	{
		api.POST("/offers", s.CreateOffer)
		api.GET("/offers/:id", s.GetOffer)
		api.GET("/offers/:id/history", s.OfferHistory)
		api.POST("/offers/:id/accept", s.AcceptOffer)
		api.POST("/offers/:id/proof", s.SubmitProof)
		api.POST("/offers/:id/decline", s.DeclineOffer)
		api.POST("/offers/:id/cancel", s.CancelOffer)
		api.POST("/offers/:id/dispute", s.DisputeOffer)
		api.POST("/offers/:id/capture/retry", s.RetryCapture)
		api.GET("/me/offers/pending", s.ListPendingOffers)
	}
}

// RunHTTP serves the engine until the application stops.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
