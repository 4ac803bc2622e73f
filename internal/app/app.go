// Package app wires configuration, stores and transports into a running
// API process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/learning-api/internal/config"
	"github.com/iliyamo/learning-api/internal/handler"
	"github.com/iliyamo/learning-api/internal/jobs"
	"github.com/iliyamo/learning-api/internal/metrics"
	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/queue"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/router"
	"github.com/iliyamo/learning-api/internal/service"
	"github.com/iliyamo/learning-api/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// App is one API process: the HTTP server plus its background workers.
type App struct {
	Cfg      config.Config
	Log      *logrus.Logger
	Echo     *echo.Echo
	Cleanup  *jobs.TokenCleanup
	Consumer *queue.ResetMailConsumer
}

// New builds the application on an open database. rdb may be nil, which
// disables rate limiting and response caching.
func New(cfg config.Config, log *logrus.Logger, db *sql.DB, rdb *redis.Client) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	issuer, err := utils.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	users := repository.NewUserRepo(db)
	refresh := repository.NewTokenRepo(db)
	reset := repository.NewResetTokenRepo(db)
	grants := repository.NewGrantRepo(db)
	products := repository.NewProductRepo(db)
	content := repository.NewContentRepo(db)
	learner := repository.NewLearnerRepo(db)

	auth, err := service.NewAuthService(
		service.Repositories{Users: users, RefreshTokens: refresh, ResetTokens: reset},
		service.SQLTransactor{DB: db},
		issuer,
		utils.NewBcryptHasher(cfg.BcryptCost),
		queue.NewPublisher(cfg.AMQPURL, log),
		service.AuthOptions{ResetTTL: cfg.ResetTTL, ExposeResetToken: cfg.ExposeReset},
		log,
		m,
	)
	if err != nil {
		return nil, err
	}
	access := service.NewAccessChecker(grants, m)

	deps := router.Deps{
		Verifier: issuer,
		Access:   access,
		Auth:     handler.NewAuthHandler(auth, cfg.RequestTimeout),
		Users: &handler.UserHandler{
			Users: users, Learner: learner, Content: content, Topics: products,
			Access: access, Log: log, Timeout: cfg.RequestTimeout,
		},
		Products: &handler.ProductHandler{Catalog: products, Content: content, Timeout: cfg.RequestTimeout},
		Admin: &handler.AdminHandler{
			Users: users, Grants: grants, Products: products, Log: log, Timeout: cfg.RequestTimeout,
		},
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	if rdb != nil {
		deps.RateLimit = middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
		deps.Cache = middleware.NewRedisCache(cfg.Cache, rdb, log)
	}

	return &App{
		Cfg:  cfg,
		Log:  log,
		Echo: NewEcho(log, cfg.IsDevelopment(), m, deps),
		Cleanup: &jobs.TokenCleanup{
			Refresh: refresh, Reset: reset, Log: log, Metrics: m,
		},
		Consumer: queue.NewResetMailConsumer(cfg.AMQPURL, cfg.MailOutboxDir, cfg.ResetLinkBase, log),
	}, nil
}

// NewEcho returns a configured echo instance with every route registered.
func NewEcho(log logrus.FieldLogger, verbose bool, m *metrics.Metrics, deps router.Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log, verbose)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.BodyLimit("10M"))
	e.Use(m.Middleware())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, deps)
	router.RegisterAPI(e, deps)
	return e
}

// Run serves HTTP and runs the background workers until ctx is cancelled
// or one of them fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.WithFields(logrus.Fields{"addr": a.Cfg.Addr(), "env": a.Cfg.Env}).Info("http server listening")
		if err := a.Echo.Start(a.Cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Log.Info("shutting down http server")
		return a.Echo.Shutdown(sctx)
	})
	if a.Consumer != nil {
		g.Go(func() error { return a.Consumer.Run(ctx) })
	}
	if a.Cleanup != nil && a.Cfg.CleanupSchedule != "" {
		g.Go(func() error { return a.Cleanup.Run(ctx, a.Cfg.CleanupSchedule) })
	}
	return g.Wait()
}
