package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/gallery"
	"github.com/oceanstats/mpas-diag/internal/runlog"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:         "serve [CONFIG...]",
	Short:       "Serve the plots directory and run history over HTTP",
	Annotations: map[string]string{annotationMode: "serve"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		plotsDir, err := cfg.PlotsDir()
		if err != nil {
			return err
		}
		if err := config.MakeDirs(plotsDir); err != nil {
			return err
		}
		index := gallery.NewIndex(plotsDir)
		if err := index.Scan(); err != nil {
			return err
		}
		if err := index.Watch(ctx); err != nil {
			return err
		}
		defer index.Stop()

		var runs gallery.RunStore
		if path, _ := cfg.RunLogPath(); path != "" {
			st, err := runlog.Open(path)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			runs = st
		}

		port := servePort
		if port == 0 {
			port = cfg.Server().Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           gallery.NewServer(index, runs).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("plots_dir", plotsDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from [server] port)")
	rootCmd.AddCommand(serveCmd)
}
