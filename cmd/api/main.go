package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/availability"
	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/ariefcatur/go-date-bookings/internal/config"
	"github.com/ariefcatur/go-date-bookings/internal/events"
	"github.com/ariefcatur/go-date-bookings/internal/httpx"
	kafkax "github.com/ariefcatur/go-date-bookings/internal/kafka"
	"github.com/ariefcatur/go-date-bookings/internal/logx"
	"github.com/ariefcatur/go-date-bookings/internal/metrics"
	"github.com/ariefcatur/go-date-bookings/internal/obs"
	"github.com/ariefcatur/go-date-bookings/internal/payments"
	"github.com/ariefcatur/go-date-bookings/internal/postgres"
	"github.com/ariefcatur/go-date-bookings/internal/rabbitmq"
	"github.com/ariefcatur/go-date-bookings/internal/redisx"
	"github.com/ariefcatur/go-date-bookings/internal/reservations"
	"github.com/ariefcatur/go-date-bookings/internal/webhooks"
	"github.com/ariefcatur/go-date-bookings/migrations"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const stuckWebhookInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logx.New(cfg.Env, cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// DB
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	clk := clock.NewSystem()
	m := metrics.New("bookings")

	catalog := postgres.NewCatalog(pool)
	store := postgres.NewBookingStore(pool, clk, cfg.ReservationTxTimeout)
	ledger := postgres.NewWebhookLedger(pool)
	tenantsDB := postgres.NewTenants(pool)
	tenants := redisx.NewTenantCache(tenantsDB, rdb, redisx.TTLTenantCache, logger)

	var cal availability.Calendar = availability.NoCalendar{}
	if cfg.GoogleCredentialsFile != "" {
		loc, err := time.LoadLocation(cfg.CalendarTimeZone)
		if err != nil {
			return fmt.Errorf("calendar timezone: %w", err)
		}
		gc, err := availability.NewGoogleCalendar(ctx, cfg.GoogleCredentialsFile, tenantsDB, loc)
		if err != nil {
			return err
		}
		cal = gc
	}
	checker := availability.NewChecker(postgres.NewBlackouts(pool), store, cal, logger, m)

	// Events: kafka always, rabbit when configured
	producer := kafkax.NewProducer(cfg.KafkaBrokers, bookings.TopicBookingConfirmed, 1024, logger)
	producer.Start()

	bus := events.NewBus[bookings.BookingConfirmed](logger, events.BusOptions{OnFailure: m.SubscriberFailed})
	bus.Subscribe("log", events.LogSink(logger))
	bus.Subscribe("kafka", events.KafkaSink(producer, cfg.ServiceName))
	if cfg.RabbitMQURL != "" {
		rmq, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer rmq.Close()
		bus.Subscribe("rabbitmq", events.RabbitSink(rmq, cfg.ServiceName))
	}

	stripe := payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	svc := reservations.New(reservations.Deps{
		Store:        store,
		Catalog:      catalog,
		Availability: checker,
		Payments:     stripe,
		Idempotency:  redisx.NewIdempotencyLedger(rdb, redisx.TTLIdempotency),
		Events:       bus,
		Clock:        clk,
		Log:          logger,
		Metrics:      m,
	})
	ingestor := webhooks.NewIngestor(stripe, ledger, svc, logger,
		webhooks.WithStaleAfter(cfg.WebhookStaleAfter),
		webhooks.WithClock(clk),
		webhooks.WithMetrics(m),
	)
	stuck := webhooks.NewStuckReporter(ledger, clk, cfg.WebhookStaleAfter, logger, m)

	router := httpx.NewRouter(httpx.RouterDeps{
		Bookings:     &httpx.BookingsHandler{Service: svc, Log: logger},
		Availability: &httpx.AvailabilityHandler{Checker: checker, Log: logger},
		Webhooks:     &httpx.WebhookHandler{Ingestor: ingestor, Log: logger},
		Tenants:      tenants,
		Metrics:      m.Handler(),
		Log:          logger,
		CheckoutRate: cfg.CheckoutRatePerMin,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		stuck.Run(gctx, stuckWebhookInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		bus.Wait()
		producer.Close()
		producer.WaitClosed()
		return err
	})
	return g.Wait()
}
