package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ultrasop/ultrasop/internal/api"
	"github.com/ultrasop/ultrasop/internal/generate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Config.ValidateServe(); err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		AuthSecret:    a.Config.Auth.Secret,
		TrustProxy:    a.Config.Server.TrustProxy,
		CORSOrigins:   a.Config.Server.CORSOrigins,
		RatePerMinute: a.Config.RateLimit.PerMinute,
		RateBurst:     a.Config.RateLimit.Burst,
		ProductName:   a.Config.ProductName,
		DefaultDetail: generate.DetailLevel(a.Config.Generate.Detail),
	}, a.Store, a.Gen, a.Logger)

	srv := &http.Server{
		Addr:              a.Config.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("serving", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.Store.Flush(shutdownCtx)
	return nil
}
