package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/staybay/backend/docs"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/database"
	"github.com/staybay/backend/internal/handlers"
	"github.com/staybay/backend/internal/observability"
	"github.com/staybay/backend/internal/services"
	"github.com/staybay/backend/internal/store"
	"github.com/staybay/backend/internal/worker"
)

// bankStore is a store that also keeps payee destination accounts.
type bankStore interface {
	store.Store
	services.BankDirectory
}

// @title StayBay Ledger and Payouts API
// @version 1.0
// @description Booking ledger, earnings maturity and vendor payout endpoints
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	log := observability.NewLogger("server")

	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Info().Err(err).Msg("config file not found, using environment and defaults")
	}
	cfg := config.Load()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := services.NewTelemetry(log, reg)

	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache, notifier := services.RedisCollaborators(redisClient)

	splits := config.NewSplitsProvider(st, cfg.SettingsTTL)
	if _, err := splits.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("platform settings unavailable, serving env and default splits")
	}

	maturity := services.NewMaturityScheduler(st, cfg.Maturity, tel)
	ledger := services.NewLedgerService(st, maturity, cfg.Currency, tel)
	reversals := services.NewReversalEngine(st, earningsMirror(redisClient), tel)
	reconciler := services.NewReconciler(ledger, reversals, maturity, splits, cfg.ReconcileDays, tel)
	payouts := services.NewPayoutService(st, maturity, st, services.NewPaystackClient(cfg.Paystack), notifier,
		services.PayoutOptionsFromConfig(cfg), tel)
	webhooks := services.NewWebhookService(st, cache, notifier, cfg.Paystack.SecretKey, cfg.Paystack.Mode, tel)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET_KEY is empty, every authenticated route will reject")
	}
	if cfg.Paystack.SecretKey == "" {
		log.Warn().Msg("PAYSTACK_SECRET_KEY is empty, webhooks will be rejected and transfers will fail")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Ledger:    handlers.NewLedgerHandler(ledger, reversals, maturity, reconciler, splits),
		Payouts:   handlers.NewPayoutHandler(payouts, log),
		Webhooks:  handlers.NewWebhookHandler(webhooks, log),
		JWTSecret: cfg.JWTSecret,
		Gatherer:  reg,
	})

	sweeper := worker.NewSweeper(maturity, cfg.Maturity.SweepInterval, log)
	sweeper.Start()
	defer sweeper.Shutdown()

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (bankStore, func()) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "memory":
		log.Warn().Msg("using in-memory store, ledger will not survive a restart")
		return store.NewMemoryStore(), func() {}
	case "postgres", "":
		db, err := database.Open(ctx, database.GetConfig(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		return store.NewPostgresStore(db), func() { db.Close() }
	}
	log.Fatal().Str("driver", cfg.StoreDriver).Msg("unknown STORE_DRIVER")
	return nil, nil
}

func earningsMirror(rdb *redis.Client) services.EarningsMirror {
	if rdb == nil {
		return nil
	}
	return services.NewRedisEarningsMirror(rdb)
}
