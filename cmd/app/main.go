package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wifi-voucher-gateway/internal/config"
	pg "wifi-voucher-gateway/internal/infra/db/postgres"
	"wifi-voucher-gateway/internal/infra/metrics"
	"wifi-voucher-gateway/internal/infra/payment/mpesa"
	red "wifi-voucher-gateway/internal/infra/redis"
	"wifi-voucher-gateway/internal/infra/sched"
	"wifi-voucher-gateway/internal/infra/web"
	"wifi-voucher-gateway/internal/logging"
	"wifi-voucher-gateway/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted numbers)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	voucherRepo := pg.NewVoucherRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	gateway := mpesa.NewDarajaGateway(cfg.Mpesa)

	// ---- Use cases ----
	autoRedeem := cfg.Vouchers.RedemptionMode == config.RedemptionModeAuto
	voucherUC := usecase.NewVoucherUseCase(
		voucherRepo, txManager, gateway, autoRedeem, cfg.Vouchers.CodeAttempts, cfg.Runtime.Dev, logger,
	)

	// ---- HTTP server ----
	srv := web.NewServer(voucherUC, rateLimiter, cfg.Redis.RateLimit, cfg.Redis.RateLimitWindow, cfg.Server.AdminAPIKey, logger)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Pending sweeper ----
	sweeper := sched.NewPendingSweeper(cfg.Vouchers.SweepInterval, cfg.Vouchers.PendingTTL, voucherRepo, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
