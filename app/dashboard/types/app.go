package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/F4txhr/pla/pkg/checker"
	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/redis"
)

type App struct {
	// Record store (ClickHouse, Redis KV or in-memory, per STORE_BACKEND)
	Store db.Store

	// Redis Client (optional, for real-time check events)
	RedisClient *redis.Client

	// Checker runs the health-check pipeline
	Checker *checker.Checker

	// Cron triggers scheduled check cycles and stale reconciliation
	Cron *cron.Cron

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the application and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Cron scheduler started")
	}

	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	if a.Cron != nil {
		a.Logger.Info("Stopping cron scheduler")
		<-a.Cron.Stop().Done()
	}

	if a.Store != nil {
		a.Logger.Info("Closing record store")
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close record store", zap.Error(err))
		}
	}

	if a.RedisClient != nil {
		a.Logger.Info("Closing Redis connection")
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)
}
