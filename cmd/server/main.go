package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruralpay/cartable/docs"
	"github.com/ruralpay/cartable/internal/config"
	"github.com/ruralpay/cartable/internal/database"
	"github.com/ruralpay/cartable/internal/handlers"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/middleware"
	"github.com/ruralpay/cartable/internal/otp"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/ruralpay/cartable/internal/services"
	"github.com/ruralpay/cartable/internal/workflow"
	"go.uber.org/zap"
)

// @title Cartable API
// @version 1.0
// @description Multi-signer payment order approval service
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	// Initialize Swagger docs
	docs.SwaggerInfo.Host = cfg.Server.SwaggerHost

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	store := repository.NewPostgres(db)
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	var otpStore otp.Store = otp.NewMemoryStore()
	if rdb := database.OpenRedis(ctx, cfg.Redis, logger); rdb != nil {
		defer rdb.Close()
		otpStore = otp.NewRedisStore(rdb)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheus("cartable")
	if err := collector.Register(registry); err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	policy, err := workflow.ParsePolicy(cfg.Workflow.RejectionPolicy)
	if err != nil {
		logger.Fatal("invalid rejection policy", zap.Error(err))
	}
	deps := services.Deps{
		Store:   store,
		Machine: workflow.NewMachine(policy, cfg.Workflow.ManagerGate),
		Metrics: collector,
		Logger:  logger,
	}

	otpCfg := otp.DefaultConfig()
	otpCfg.CodeLength = cfg.OTP.CodeLength
	otpCfg.TTL = cfg.OTP.TTL
	otpCfg.MaxAttempts = cfg.OTP.MaxAttempts
	otpCfg.RateLimit = cfg.OTP.RateLimit
	otpCfg.RateLimitWindow = cfg.OTP.RateLimitWindow
	otpCfg.Hash.Time = cfg.OTP.Argon2Time
	otpCfg.Hash.Memory = cfg.OTP.Argon2Memory
	otpCfg.Hash.Threads = cfg.OTP.Argon2Threads
	otpCfg.Hash.KeyLength = cfg.OTP.Argon2KeyLength
	gate := otp.NewGate(otpStore, otp.NewLogNotifier(logger), otpCfg, logger, collector)

	gateway := services.NewBreakerGateway(
		services.NewLogGateway(logger),
		services.BreakerConfigFrom(cfg.Bank),
		collector,
		logger,
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		Orders:         services.NewOrderService(deps, gateway, services.NewPacs008Builder(cfg.Bank)),
		Approvals:      services.NewApprovalService(deps, gate, cfg.Workflow.MaxBatchSize),
		Accounts:       services.NewAccountService(deps),
		Groups:         services.NewGroupService(deps),
		Exports:        services.NewExportService(store),
		Receipts:       services.NewReceiptService(store),
		Tokens:         middleware.NewTokenManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour),
		Health:         store,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	worker := services.NewExpiryWorker(deps, cfg.Workflow.ApprovalSLA, cfg.Workflow.SweepInterval, cfg.Workflow.SweepBatchSize)
	go worker.Run(ctx)

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
