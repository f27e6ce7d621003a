package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ritual/internal/analytics"
	"ritual/internal/auth"
	"ritual/internal/calendar"
	"ritual/internal/cards"
	"ritual/internal/catalog"
	"ritual/internal/config"
	"ritual/internal/db"
	"ritual/internal/explore"
	httpx "ritual/internal/http"
	"ritual/internal/jobs"
	"ritual/internal/logger"
	"ritual/internal/rewards"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the analytics worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DatabaseURL, db.Options{})
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return err
	}

	var publisher analytics.Publisher = analytics.LogPublisher{}
	if cfg.RedisAddr != "" {
		rp, err := analytics.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = rp
	}

	jobsRepo := &jobs.Repo{DB: gdb}
	outbox := &jobs.Outbox{Repo: jobsRepo}
	clock := calendar.SystemClock{}

	cardSvc := &cards.Service{DB: gdb, Catalog: cat, Clock: clock, Loc: loc, Events: outbox}
	svc := httpx.Services{
		Cards:   cardSvc,
		Rewards: &rewards.Service{DB: gdb, Catalog: cat, Stats: cardSvc, Clock: clock, Events: outbox},
		Explore: &explore.Service{DB: gdb, Catalog: cat, Clock: clock, Loc: loc, Events: outbox},
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, svc, jwtSvc)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := &jobs.Worker{
		ID:        "worker-" + uuid.NewString()[:8],
		Repo:      jobsRepo,
		Publisher: publisher,
		Interval:  cfg.AnalyticsInterval,
	}
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithField("addr", cfg.HTTPAddr).WithField("timezone", loc.String()).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
