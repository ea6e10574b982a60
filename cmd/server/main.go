package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"studytimer/backend/internal/clock"
	"studytimer/backend/internal/config"
	"studytimer/backend/internal/db"
	"studytimer/backend/internal/handler"
	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/notify"
	"studytimer/backend/internal/repository"
	"studytimer/backend/internal/router"
	"studytimer/backend/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Initialize(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if err := run(cfg); err != nil {
		logging.Logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database, db.MigrationSource(cfg.MigrationsDir)); err != nil {
		return err
	}

	clk := clock.NewReal()
	hub := notify.NewHub()

	userRepo := repository.NewUserRepository(database)
	goalRepo := repository.NewGoalRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	progressRepo := repository.NewProgressRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	timerService := service.NewTimerService(service.TimerServiceDeps{
		KV:           repository.NewKVRepository(database),
		Goals:        goalRepo,
		Sessions:     sessionRepo,
		Progress:     progressRepo,
		Notifiers:    hub,
		Clock:        clk,
		Location:     cfg.StatsLocation,
		TickInterval: cfg.TickInterval,
	})
	defer timerService.Close()

	goalService := service.NewGoalService(goalRepo, timerService, clk, cfg.StatsLocation)
	sessionService := service.NewSessionService(sessionRepo, cfg.StatsLocation)
	statsService := service.NewStatsService(progressRepo, clk, cfg.StatsLocation)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Goals:    handler.NewGoalHandler(goalService),
		Sessions: handler.NewSessionHandler(sessionService),
		Stats:    handler.NewStatsHandler(statsService),
		Timer:    handler.NewTimerHandler(timerService, hub),
	}, cfg.CORSOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Request contexts derive from ctx so open event streams end on shutdown.
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     engine,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logging.Logger.Info("backend listening", "addr", server.Addr, "timezone", cfg.StatsLocation.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.Logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
