package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/go-compare-backend/internal/http"
	"github.com/tbourn/go-compare-backend/internal/observability"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			_ = shutdownOTel(context.Background())
			return err
		}

		gin.SetMode(cfg.GinMode)
		r := gin.New()
		httpapi.RegisterRoutes(r, httpapi.Deps{
			Arbiter:     a.arb,
			Comparisons: a.comps,
			Idempotency: a.idem,
		}, cfg)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           r,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				_ = a.close()
				return err
			}
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if err := a.close(); err != nil {
			log.Error().Err(err).Msg("closing dependencies")
		}
		if err := shutdownOTel(sctx); err != nil {
			log.Error().Err(err).Msg("otel shutdown")
		}
		return nil
	},
}
