// Package main provides the interview backend server entrypoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"prepmate/internal/auth"
	"prepmate/internal/logging"
	"prepmate/internal/router"
	"prepmate/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Optional; environments without a .env file rely on the process env.
	_ = godotenv.Load()

	logger := logging.NewServer(os.Getenv("LOG_LEVEL"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET is required")
		return 1
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backing store.Store
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			logger.Error("connect to database", "error", err.Error())
			return 1
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("run migrations", "error", err.Error())
			return 1
		}
		backing = pg
		logger.Info("using postgres store")
	} else {
		backing = store.NewMemStore()
		logger.Warn("DATABASE_URL not set; using in-memory store, data will not survive restarts")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router.Setup(logger, backing, auth.NewTokens(secret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("server listening", "port", port)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err.Error())
			return 1
		}
	}

	return 0
}
