// Package main запускает сервис флеш-распродаж: HTTP API, обработчики очередей и сканер распродаж.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/twalmsley/FlashSales-sub001/internal/config"
	"github.com/twalmsley/FlashSales-sub001/internal/handler"
	"github.com/twalmsley/FlashSales-sub001/internal/metrics"
	"github.com/twalmsley/FlashSales-sub001/internal/middleware"
	"github.com/twalmsley/FlashSales-sub001/internal/payment"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
	"github.com/twalmsley/FlashSales-sub001/internal/repository"
	"github.com/twalmsley/FlashSales-sub001/internal/scanner"
	"github.com/twalmsley/FlashSales-sub001/internal/service"
	"github.com/twalmsley/FlashSales-sub001/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil {
		sugar.Infow("no .env file loaded", "reason", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	writer := queue.NewKafkaWriter(cfg.KafkaBrokers)
	publisher := queue.NewPublisher(writer)
	defer publisher.Close()

	var gateway payment.Gateway
	if cfg.PaymentGatewayAddress != "" {
		gateway = payment.NewClient(cfg.PaymentGatewayAddress)
	} else {
		sugar.Infow("payment gateway address not set, using simulator", "success_rate", cfg.PaymentSuccessRate)
		gateway = payment.NewSimulator(cfg.PaymentSuccessRate, uint64(time.Now().UnixNano()))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	svc := service.NewService(repo, publisher, gateway, logger, service.Options{
		MinSaleDuration: cfg.MinSaleDuration,
		PaymentClaimTTL: cfg.PaymentClaimTTL,
		Notifier:        service.NewLogNotifier(logger),
		Metrics:         m,
	})

	handlers := worker.NewHandlers(svc, publisher, logger)

	var runners []worker.Runner
	for ch, h := range handlers.Routes() {
		reader := queue.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, ch)
		consumerCfg := queue.ConsumerConfig{
			Channel:     ch,
			MaxAttempts: cfg.MaxDeliveryAttempts,
			Backoff:     cfg.RetryBackoff,
		}
		runners = append(runners, queue.NewConsumer(consumerCfg, reader, writer, h, logger, m))
	}

	runners = append(runners, scanner.New(repo, publisher, scanner.Config{
		Interval:     cfg.ScanInterval,
		RequeueAfter: cfg.PendingRequeueAfter,
	}, logger, m))

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.AdminKey, promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Обработчики очередей и сканер распродаж
	g.Go(func() error {
		sugar.Infow("starting background workers", "count", len(runners))
		return worker.RunAll(ctx, runners...)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting flashsales server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
