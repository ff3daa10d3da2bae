package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ridehall/busline/internal/config"
	"github.com/ridehall/busline/internal/notification"
	"github.com/ridehall/busline/internal/postgres"
	"github.com/ridehall/busline/internal/redis"
	postgresrepo "github.com/ridehall/busline/internal/repository/postgres"
	redisrepo "github.com/ridehall/busline/internal/repository/redis"
	"github.com/ridehall/busline/internal/service"
	"github.com/ridehall/busline/internal/service/query"
	"github.com/ridehall/busline/internal/service/reservation"
	"github.com/ridehall/busline/internal/service/sweeper"
	httpgin "github.com/ridehall/busline/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	dispatcher *notification.Dispatcher
	cache      *redisrepo.Cache
	pubsub     *redisrepo.SchedulesPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	dispatcher, err := notification.NewDispatcher(cfg.AMQP.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewSchedulesPubSub(rdb)
	positions := redisrepo.NewPositionsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisrepo.KeyRateLimit(), cfg.Limiter.Limit, cfg.Limiter.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	services := service.NewServices(store, cache, pubsub, positions, limiter, dispatcher, service.Config{
		Reservation: reservation.Config{
			DefaultHoldTTL: cfg.Holds.DefaultTTL,
			MinHoldTTL:     cfg.Holds.MinTTL,
			MaxHoldTTL:     cfg.Holds.MaxTTL,
		},
		Query: query.Config{},
	})

	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sweeper:    sweeper.New(services.Reservation, cfg.Holds.SweepInterval, logger),
		dispatcher: dispatcher,
		cache:      cache,
		pubsub:     pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Start hold-expiry sweeper
	g.Go(func() error {
		if err := a.sweeper.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("sweeper stopped: %w", err)
		}
		return nil
	})

	// Drop cached schedule state when another instance mutates it
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, scheduleID int64) {
			if err := a.cache.InvalidateSchedule(ctx, scheduleID); err != nil {
				a.logger.Warn("failed to invalidate schedule cache", "schedule_id", scheduleID, "error", err)
			}
		})
		if err != nil && err != context.Canceled {
			return fmt.Errorf("schedules subscriber stopped: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		a.dispatcher.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
