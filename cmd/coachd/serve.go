package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-coach-session/internal/coach"
	"github.com/tbourn/go-coach-session/internal/config"
	httpapi "github.com/tbourn/go-coach-session/internal/http"
	"github.com/tbourn/go-coach-session/internal/observability"
	"github.com/tbourn/go-coach-session/internal/repo"
	"github.com/tbourn/go-coach-session/internal/services"
	"github.com/tbourn/go-coach-session/internal/sysutil"
)

const (
	maxMessageRunes = 4000
	purgeInterval   = time.Hour
	shutdownTimeout = 15 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	gin.SetMode(cfg.GinMode)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	personas, err := services.LoadPersonaCatalog(cfg.Coach.PersonasPath)
	if err != nil {
		return err
	}
	client := coach.NewClient(coach.Options{
		BaseURL:         cfg.Coach.BaseURL,
		ChatTimeout:     cfg.Coach.ChatTimeout,
		FeedbackTimeout: cfg.Coach.FeedbackTimeout,
	})
	svc := services.NewSessionService(db, client, personas)
	svc.MaxMessageRunes = maxMessageRunes
	defer svc.Close()

	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeLoop(ctx, svc, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("coach", cfg.Coach.BaseURL).
			Int("personas", len(personas.List())).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Streams are hijacked connections; closing sessions ends them.
	svc.Close()
	return srv.Shutdown(sctx)
}

// purgeLoop drops expired idempotency records every interval until ctx ends.
func purgeLoop(ctx context.Context, svc *services.SessionService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("idempotency records purged")
			}
		}
	}
}
