package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"casino_wallet/internal/api/handlers"
	"casino_wallet/internal/betting"
	"casino_wallet/internal/bonus"
	"casino_wallet/internal/clock"
	"casino_wallet/internal/commission"
	"casino_wallet/internal/config"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/logger"
	"casino_wallet/internal/metrics"
	"casino_wallet/internal/notify"
	"casino_wallet/internal/router"
	"casino_wallet/internal/slots"
	"casino_wallet/internal/storage"
	"casino_wallet/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file loaded:", err)
	}

	bootLog, err := logger.New("info")
	if err != nil {
		log.Fatalln(err)
	}
	cfg, err := config.NewBuilder(bootLog).
		FromEnv().
		FromFlags(flag.CommandLine, os.Args[1:]).
		Build()
	if err != nil {
		bootLog.Fatal("failed to load config", zap.Error(err))
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		bootLog.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := storage.Migrate(cfg.DatabaseURI); err != nil {
			return err
		}
	}
	db, err := storage.Open(cfg.DatabaseURI, zl)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	hub := notify.NewHub()
	publisher := notify.Multi{hub}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis is not reachable, events stay in-process", zap.Error(err))
		} else {
			publisher = append(publisher, notify.NewRedisPublisher(rdb))
		}
	}

	clk := clock.RealClock{}
	m := metrics.New(prometheus.DefaultRegisterer)

	lrepo := ledger.NewRepository(db)
	calc := ledger.NewCalculator(db, lrepo)
	cache := ledger.NewBalanceCache(calc, cfg.BalanceCacheTTL, clk, m)
	l := ledger.New(db, lrepo, calc, cache)

	bonusRepo := bonus.NewRepository(db)
	commissions := commission.NewProcessor(l, bonusRepo, m, zl.Named("commission"))
	tracker := bonus.NewTracker(bonusRepo, clk, m, zl.Named("wagering"))
	bonuses := bonus.NewService(l, bonusRepo, commissions, publisher, clk, m, zl.Named("bonus"))

	walletService := wallet.NewService(l, bonuses, tracker, commissions, publisher, clk, m, zl.Named("wallet"))
	bettingService := betting.NewService(l, betting.NewRepository(db), tracker, commissions, publisher, clk, m, zl.Named("betting"))
	slotsService := slots.NewService(l, tracker, commissions, publisher, clk, m, zl.Named("slots"))

	gin.SetMode(gin.ReleaseMode)
	h := handlers.New(walletService, slotsService, bettingService, bonuses, hub, cfg.PageSize)
	srv := &http.Server{
		Addr:              cfg.RunAddr,
		Handler:           router.New(h, []byte(cfg.SecretKey), prometheus.DefaultGatherer, zl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server started", zap.String("address", cfg.RunAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
