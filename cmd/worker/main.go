// Command worker runs the audit pipeline as a background daemon: it accepts
// no HTTP traffic (spec Non-goals exclude a transport surface) and instead
// owns the full construction/shutdown order from spec §9 -- config, cache,
// database, partition manager, queue, circuit breaker, dead-letter handler,
// alerting service, pattern detector, event bus, storage writer and worker
// pool, tracer, and finally the pipeline itself.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"auditcore/internal/alerting"
	"auditcore/internal/circuit"
	"auditcore/internal/deadletter"
	"auditcore/internal/eventbus"
	"auditcore/internal/partition"
	"auditcore/internal/pattern"
	"auditcore/internal/pipeline"
	"auditcore/internal/platform/config"
	"auditcore/internal/platform/logger"
	"auditcore/internal/platform/metrics"
	"auditcore/internal/platform/redis"
	"auditcore/internal/preset"
	"auditcore/internal/processor"
	"auditcore/internal/queue"
	"auditcore/internal/seal"
	"auditcore/internal/storage"
	"auditcore/internal/tracer"
	"auditcore/internal/validate"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

const queueName = "audit-log"

func main() {
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	m := metrics.New()

	rdb, err := redis.New(config.RedisFromEnv())
	if err != nil {
		return err
	}
	if rdb == nil {
		return errs.New(errs.CodeConfig, "REDIS_URL is required to run the worker")
	}
	defer rdb.Close()

	db, err := storage.NewDBClient(ctx, config.DBFromEnv(), m, log)
	if err != nil {
		return err
	}
	defer db.Close()

	cache := storage.NewCache(rdb.Client)

	partitions := partition.New(storage.NewDDLExecutor(db), storage.NewPartitionCatalog(db))
	if err := partitions.EnsureAhead(ctx, time.Now()); err != nil {
		log.Warn("partition look-ahead failed", "error", err)
	}

	dbCfg := config.DBFromEnv()
	partitionNotifier, err := storage.NewPartitionNotifier(dbCfg.DSN, log)
	if err != nil {
		return err
	}
	defer partitionNotifier.Close()
	go func() {
		for name := range partitionNotifier.Notifications() {
			log.Info("partition created notification received", "partition", name)
		}
	}()

	kafkaCfg := config.KafkaFromEnv()

	backend := queue.NewBackend(rdb.Client)
	producer := queue.NewProducer(backend)

	breaker := circuit.New(queueName)

	dlqAlert := alertThresholdFromEnv()
	dlq := deadletter.New(storage.NewDeadLetterStore(db), storage.NewQueueRequeuer(producer), deadletter.WithAlertThreshold(
		dlqAlert.count, dlqAlert.window,
		func(ctx context.Context, queue string, count int, window time.Duration) {
			log.Warn("dead-letter arrival rate exceeded threshold", "queue", queue, "count", count, "window", window)
		},
	))

	alertingService := alerting.New(rdb.Client, log, alertHandlersFromEnv(db, log), alerting.WithCounters(m))
	coordinator := pattern.NewCoordinator(pattern.DefaultDetectors(), alertingService, log)

	var publisher storage.EventPublisher
	var busProducer *eventbus.Producer
	var consumer *eventbus.Consumer
	if len(kafkaCfg.Brokers) > 0 {
		producerClient, err := eventbus.NewProducerClient(kafkaCfg.Brokers, kafkaCfg.Topic)
		if err != nil {
			return err
		}
		if err := eventbus.EnsureTopic(ctx, producerClient, kafkaCfg.Topic); err != nil {
			return err
		}
		busProducer = eventbus.NewProducer(producerClient, kafkaCfg.Topic)
		publisher = busProducer
		defer busProducer.Close()

		consumerClient, err := eventbus.NewConsumerClient(kafkaCfg.Brokers, "pattern-detector", kafkaCfg.Topic)
		if err != nil {
			return err
		}
		router := eventbus.NewRouter(log, nil)
		router.Register(kafkaCfg.Topic, eventbus.NewPatternHandler(coordinator))
		consumer = eventbus.NewConsumer(consumerClient, router, log)
		defer consumer.Close()
	}

	writer := storage.NewWriter(db, cache, partitions, publisher)

	pool := processor.New(processor.Config{
		QueueName:     queueName,
		Concurrency:   envInt("AUDIT_WORKER_CONCURRENCY", 8),
		LeaseDuration: 30 * time.Second,
		GraceDuration: 15 * time.Second,
		PollInterval:  200 * time.Millisecond,
		Retry:         processor.DefaultRetryPolicy,
	}, backend, breaker, func(ctx context.Context, event domain.AuditEvent) error {
		return writer.Write(ctx, event)
	}, dlq, log)

	tr := tracer.New(tracerExporterFromEnv(log), log)
	defer tr.Shutdown(ctx)

	presetResolver := preset.New(storage.NewPresetStore(db), envInt("AUDIT_PRESET_CACHE_SIZE", 256))
	sealer := seal.New(seal.WithHMACSecret([]byte(os.Getenv("AUDIT_HMAC_SECRET"))))
	// Log is the Producer API library callers invoke directly (spec §6); this
	// daemon only needs it fully constructed and reachable, not to call it.
	_ = pipeline.New(presetResolver, validate.New(), sealer, producer, queueName, tr, m, log)

	var wg sync.WaitGroup
	spawn(&wg, func() { _ = pool.Run(ctx) })
	if consumer != nil {
		spawn(&wg, func() { _ = consumer.Run(ctx) })
	}
	spawn(&wg, func() { runPartitionScheduler(ctx, partitions, log) })

	log.Info("worker started", "queue", queueName, "kafka_brokers", strings.Join(kafkaCfg.Brokers, ","))
	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	waitWithTimeout(&wg, 15*time.Second)
	return nil
}

func spawn(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func runPartitionScheduler(ctx context.Context, partitions *partition.Manager, log *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := partitions.EnsureAhead(ctx, now); err != nil {
				log.Error("partition look-ahead failed", "error", err)
			}
		}
	}
}

type alertThreshold struct {
	count  int
	window time.Duration
}

func alertThresholdFromEnv() alertThreshold {
	return alertThreshold{
		count:  envInt("AUDIT_DLQ_ALERT_THRESHOLD", 10),
		window: envDuration("AUDIT_DLQ_ALERT_WINDOW", 5*time.Minute),
	}
}

func alertHandlersFromEnv(db *storage.DBClient, log *slog.Logger) []alerting.Handler {
	handlers := []alerting.Handler{
		alerting.NewConsoleHandler(log),
		alerting.NewDatabaseHandler(db.Pool()),
	}
	if url := os.Getenv("AUDIT_WEBHOOK_URL"); url != "" {
		handlers = append(handlers, alerting.NewWebhookHandler(url, []byte(os.Getenv("AUDIT_WEBHOOK_SIGNING_KEY")), os.Getenv("AUDIT_WEBHOOK_ISSUER")))
	}
	if recipients := os.Getenv("AUDIT_EMAIL_RECIPIENTS"); recipients != "" {
		handlers = append(handlers, alerting.NewEmailHandler(alerting.SMTPMailer{
			Addr: os.Getenv("AUDIT_SMTP_ADDR"),
			From: os.Getenv("AUDIT_SMTP_FROM"),
		}, strings.Split(recipients, ",")))
	}
	return handlers
}

func tracerExporterFromEnv(log *slog.Logger) tracer.Exporter {
	switch os.Getenv("AUDIT_TRACE_EXPORTER") {
	case "jaeger":
		return tracer.NewJaegerExporter(os.Getenv("AUDIT_TRACE_ENDPOINT"), "auditcore")
	case "zipkin":
		return tracer.NewZipkinExporter(os.Getenv("AUDIT_TRACE_ENDPOINT"), "auditcore")
	case "otlp":
		return tracer.NewOTLPExporter(os.Getenv("AUDIT_TRACE_ENDPOINT"), "auditcore")
	default:
		return tracer.NewConsoleExporter(log)
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
