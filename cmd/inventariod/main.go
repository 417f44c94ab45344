package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rvlxssss/inventario-casa-sub000/internal/config"
	"github.com/rvlxssss/inventario-casa-sub000/internal/database"
	"github.com/rvlxssss/inventario-casa-sub000/internal/logging"
	"github.com/rvlxssss/inventario-casa-sub000/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.App.LogLevel)

	db, err := database.Open(cfg.DB.Path)
	if err != nil {
		logger.Error("open database", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg.Session.TTL, logger)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.App.Port),
		Handler:     srv.Router(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relay listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Expired sessions are reaped in the background so abandoned codes
	// cannot be joined and their rows do not accumulate.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Session.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := srv.Registry().ReapExpired(); err != nil {
					logger.Warn("reap expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("reaped expired sessions", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("relay exited", "error", err)
		os.Exit(1)
	}
}
