package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lanesville-research/parcel-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cached parcels over a read-only HTTP API",
	Long: "Starts an HTTP server exposing the cached areas as JSON and GeoJSON, " +
		"plus a small map viewer on the root path. The cache directory is read per " +
		"request, so a fetch in another terminal shows up without a restart.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := newStore()
		if err != nil {
			return err
		}
		areas, err := loadAreas()
		if err != nil {
			return err
		}
		hist := openHistory(cmd)
		if hist != nil {
			defer hist.Close()
		}

		srv := server.New(st, areas, hist, server.Options{
			CORSOrigins: cfg.Serve.CORSOrigins,
		})

		addr := serveAddr
		if addr == "" {
			addr = cfg.Serve.Addr
		}
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown error", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.String("addr", addr),
			zap.String("cache_dir", st.Dir()))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
