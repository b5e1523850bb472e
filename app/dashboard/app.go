package dashboard

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/F4txhr/pla/app/dashboard/types"
	"github.com/F4txhr/pla/pkg/checker"
	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/kv"
	"github.com/F4txhr/pla/pkg/logging"
	"github.com/F4txhr/pla/pkg/probe"
	"github.com/F4txhr/pla/pkg/redis"
	"github.com/F4txhr/pla/pkg/utils"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	backend := utils.Env("STORE_BACKEND", "clickhouse")

	// Redis carries real-time check events and doubles as the record store
	// when STORE_BACKEND=redis.
	var redisClient *redis.Client
	if backend == "redis" || utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			if backend == "redis" {
				logger.Fatal("Unable to establish Redis connection", zap.Error(err))
			}
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	var store db.Store
	switch backend {
	case "memory":
		store = db.NewMem()
		logger.Info("Using in-memory record store")
	case "redis":
		store = kv.New(redisClient, logger)
		logger.Info("Using Redis record store")
	default:
		chStore, chErr := db.New(ctx, logger)
		if chErr != nil {
			logger.Fatal("Unable to initialize ClickHouse database", zap.Error(chErr))
		}
		store = chStore
		logger.Info("Using ClickHouse record store", zap.String("database", chStore.Name))
	}

	oracle := probe.NewOracle(probe.OracleOptsFromEnv())
	prober := probe.NewProber(oracle, utils.EnvInt("PROBE_PARALLELISM", 32), logger)
	chk := checker.New(store, prober, redisClient, checker.ConfigFromEnv(), logger)

	app := &types.App{
		Store:       store,
		RedisClient: redisClient,
		Checker:     chk,
		Logger:      logger,
	}

	if err := scheduleChecks(ctx, app); err != nil {
		logger.Fatal("Unable to schedule check cycles", zap.Error(err))
	}

	return app
}

// scheduleChecks wires the periodic full check and the stale-record sweep
// into a cron scheduler. Either schedule can be disabled by setting its
// expression to "off".
func scheduleChecks(ctx context.Context, app *types.App) error {
	checkSpec := utils.Env("CHECK_CRON", "0 */30 * * * *")
	staleSpec := utils.Env("RECONCILE_CRON", "0 */5 * * * *")

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)

	if checkSpec != "off" {
		if _, err := c.AddFunc(checkSpec, func() {
			// keep the trigger itself bounded; probing continues detached
			rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
			defer cancel()
			scheduled, err := app.Checker.Trigger(rctx)
			if err != nil {
				app.Logger.Error("Scheduled check trigger failed", zap.Error(err))
				return
			}
			app.Logger.Info("Scheduled check trigger", zap.Int("scheduled", scheduled))
		}); err != nil {
			return err
		}
	}

	if staleSpec != "off" {
		if _, err := c.AddFunc(staleSpec, func() {
			rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
			defer cancel()
			reconciled, err := app.Checker.ReconcileStale(rctx)
			if err != nil {
				app.Logger.Error("Stale reconciliation failed", zap.Error(err))
				return
			}
			if reconciled > 0 {
				app.Logger.Info("Stale reconciliation", zap.Int("reconciled", reconciled))
			}
		}); err != nil {
			return err
		}
	}

	app.Cron = c
	return nil
}
