package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlers "github.com/nutribox/payment-service/internal/adapter/handler/http"
	"github.com/nutribox/payment-service/internal/config"
	"github.com/nutribox/payment-service/internal/middleware/auth"
	"github.com/nutribox/payment-service/internal/usecase"
)

type Server struct {
	config        *config.Config
	logger        *zap.Logger
	echo          *echo.Echo
	registry      *prometheus.Registry
	subscriptions *usecase.SubscriptionService
	notifications *usecase.NotificationService
	reconciler    *usecase.ReconcileService
	plans         *handlers.PlansHandler
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	registry *prometheus.Registry,
	subscriptions *usecase.SubscriptionService,
	notifications *usecase.NotificationService,
	reconciler *usecase.ReconcileService,
	plans *handlers.PlansHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PATCH, echo.DELETE},
	}))

	return &Server{
		config:        cfg,
		logger:        logger,
		echo:          e,
		registry:      registry,
		subscriptions: subscriptions,
		notifications: notifications,
		reconciler:    reconciler,
		plans:         plans,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	subscriptionHandler := handlers.NewSubscriptionHandler(s.subscriptions, s.logger)
	notifyHandler := handlers.NewNotifyHandler(s.notifications, s.logger)
	reconcileHandler := handlers.NewReconcileHandler(s.reconciler, s.logger)

	// Gateway webhook: authenticated by the sealed envelope itself, not JWT.
	s.echo.POST("/webhooks/peripay", notifyHandler.Handle)

	// Operator surface
	internal := s.echo.Group("/internal")
	internal.POST("/reconcile/preview", reconcileHandler.Preview)
	internal.POST("/reconcile/commit", reconcileHandler.Commit)

	// Storefront API
	api := s.echo.Group("/api/v1")
	api.Use(auth.JWTMiddleware(auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
	}))

	api.GET("/plans", s.plans.GetPlans)
	api.POST("/subscriptions", subscriptionHandler.Create)
	api.GET("/subscriptions/:id", subscriptionHandler.Get)
	api.GET("/subscriptions/:id/charges", subscriptionHandler.Charges)
	api.POST("/subscriptions/:id/cancel", subscriptionHandler.Cancel)
	api.POST("/subscriptions/:id/suspend", subscriptionHandler.Suspend)
	api.POST("/subscriptions/:id/restart", subscriptionHandler.Restart)
	api.PATCH("/subscriptions/:id/terms", subscriptionHandler.ChangeTerms)
}
