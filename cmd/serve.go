package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/api"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/config"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/estimate"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/model"
)

var (
	servePort    int
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history, estimates and the latest bundle over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		var targets []model.Target
		if cfg.Scrape.TargetsFile != "" {
			targets, err = config.LoadTargets(cfg.Scrape.TargetsFile)
			if err != nil {
				zap.L().Warn("targets not loaded, estimates cover nothing", zap.Error(err))
			}
		}

		srvAPI := api.New(api.Options{
			Store:          st,
			Stats:          estimate.NewStore(cfg.Estimate.StatsFile),
			Targets:        targets,
			Cache:          newCacheManager(),
			Format:         cfg.Output.Format,
			AllowedOrigins: serveOrigins,
		}, zap.L())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srvAPI.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default *)")
	rootCmd.AddCommand(serveCmd)
}
