package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"lobby-scout/internal/config"
	"lobby-scout/internal/constants"
	fxmodules "lobby-scout/internal/fx"
	"lobby-scout/internal/middleware"
	"lobby-scout/internal/poller"
	"lobby-scout/internal/render"
	"lobby-scout/internal/server"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	overlay *server.OverlayServer,
	queue *render.Queue,
	p *poller.Poller,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	logger.Info().
		Str("stats_base_url", cfg.StatsBaseURL).
		Str("session_base_url", cfg.SessionBaseURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(overlay.Routes()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	pollDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			queue.Start()

			go func() {
				defer close(pollDone)
				p.Run(pollCtx)
			}()

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("overlay server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("overlay server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			cancelPoll()
			<-pollDone

			queue.Stop(shutdownCtx)

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("overlay server shutdown failed")
				return err
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
