package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/http/middleware"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmehdipour/customers-api/internal/service/customer"
	"github.com/jmehdipour/customers-api/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// NewServer wires repositories, the customer service and the router.
// rds may be nil, which disables rate limiting.
func NewServer(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	customersRepo := repository.NewCustomersRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// services
	customerSvc := customer.New(customersRepo, outboxRepo)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	return &Server{e: newRouter(cfg, customerSvc, rds)}
}

func newRouter(cfg config.Config, svc CustomerService, rds *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))

	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.NewULID}),
		requestLogger(),
	)
	if cfg.HTTP.BodyLimit != "" {
		e.Use(echoMid.BodyLimit(cfg.HTTP.BodyLimit))
	}
	if cfg.HTTP.RequestTimeout > 0 {
		e.Use(echoMid.ContextTimeoutWithConfig(echoMid.ContextTimeoutConfig{Timeout: cfg.HTTP.RequestTimeout}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		Limit:          cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         cfg.RateLimit.Window,
		RetryAfterHint: true,
	})

	lim := pagingLimits{defaultPerPage: cfg.Pagination.DefaultPerPage, maxPerPage: cfg.Pagination.MaxPerPage}
	if lim.defaultPerPage <= 0 {
		lim.defaultPerPage = 10
	}
	if lim.maxPerPage < lim.defaultPerPage {
		lim.maxPerPage = lim.defaultPerPage
	}
	now := func() time.Time { return time.Now().UTC() }

	// routes, mounted at the root and under /api
	for _, prefix := range []string{"", "/api"} {
		g := e.Group(prefix+"/customers", rlMW)
		g.POST("/import", importCustomersHandler(svc, cfg.Import.MaxKB))
		g.GET("/export", exportCustomersHandler(svc, now))
		g.GET("", listCustomersHandler(svc, lim))
		g.POST("", createCustomerHandler(svc))
		g.GET("/:id", getCustomerHandler(svc))
		g.PUT("/:id", updateCustomerHandler(svc))
		g.DELETE("/:id", deleteCustomerHandler(svc))
	}

	return e
}

func requestLogger() echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			logger.Log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
