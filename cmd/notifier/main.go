package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/config"
	kafkax "github.com/ariefcatur/go-date-bookings/internal/kafka"
	"github.com/ariefcatur/go-date-bookings/internal/logx"
	"github.com/ariefcatur/go-date-bookings/internal/notify"
	"github.com/ariefcatur/go-date-bookings/internal/redisx"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logx.New(cfg.Env, cfg.LogLevel, cfg.ServiceName+"-notifier")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var n notify.Notifier = notify.LogNotifier{Log: logger}
	if cfg.NotifyWebhookURL != "" {
		n = notify.NewHTTPNotifier(cfg.NotifyWebhookURL, nil)
	}
	h := notify.NewHandler(redisx.NewDedup(rdb, "notifier", redisx.TTLDedup), n, logger)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, bookings.TopicBookingConfirmed, cfg.NotifierWorkers, logger)
	logger.Info("notifier consumer started",
		zap.String("group", cfg.NotifierGroup),
		zap.String("topic", bookings.TopicBookingConfirmed),
		zap.Int("workers", cfg.NotifierWorkers))
	if err := cons.Start(ctx, h.HandleMessage); err != nil {
		logger.Fatal("consumer exit", zap.Error(err))
	}
	logger.Info("notifier stopped")
}
