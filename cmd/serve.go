package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/olive/internal/chat"
	"github.com/JonMunkholm/olive/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides OLIVE_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		e.cfg.HTTP.Address = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := chat.NewSessions(e.cfg.Sessions.TTL)
	sessions.StartSweeper(ctx, e.cfg.Sessions.SweepInterval, e.logger)

	handler := server.New(server.Options{
		Pipeline:    e.pipeline,
		Sessions:    sessions,
		Logger:      e.logger,
		CORSOrigins: e.cfg.HTTP.CORSOrigins,
	}).Routes()

	srv := &http.Server{
		Addr:         e.cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  e.cfg.HTTP.ReadTimeout,
		WriteTimeout: e.cfg.HTTP.WriteTimeout,
		IdleTimeout:  e.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	stop()

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	e.logger.Info("server stopped")
	return nil
}
