package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
	"github.com/iota-uz/plm-sdk/modules/plm/infrastructure/persistence"
	"github.com/iota-uz/plm-sdk/modules/plm/presentation/controllers"
	"github.com/iota-uz/plm-sdk/modules/plm/services"
	"github.com/iota-uz/plm-sdk/pkg/composables"
	"github.com/iota-uz/plm-sdk/pkg/configuration"
	"github.com/iota-uz/plm-sdk/pkg/eventbus"
	"github.com/iota-uz/plm-sdk/pkg/metrics"
	"github.com/iota-uz/plm-sdk/pkg/outbox"
	outboxeventbus "github.com/iota-uz/plm-sdk/pkg/outbox/dispatchers/eventbus"
	"github.com/iota-uz/plm-sdk/pkg/riskai"
)

var outboxTable = pgx.Identifier{"plm_outbox"}

func main() {
	conf := configuration.Use()
	log := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, conf *configuration.Configuration, log *logrus.Logger) error {
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := applyMigrations(ctx, pool, conf.MigrationsDir); err != nil {
		return err
	}

	bus := eventbus.NewEventPublisher(log)
	subscribeNotifier(bus, log)

	svc, err := buildService(conf, log, bus)
	if err != nil {
		return err
	}

	if conf.Outbox.RelayEnabled {
		startOutboxRelay(ctx, conf, log, pool, bus)
	}

	router := mux.NewRouter()
	router.Use(poolMiddleware(pool))
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if conf.Prometheus.Enabled {
		metrics.Mount(router, conf.Prometheus.Path)
	}
	controllers.NewChangeOrdersController(svc, logrus.NewEntry(log)).Register(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("plm server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func buildService(conf *configuration.Configuration, log *logrus.Logger, bus eventbus.EventBus) (*services.ChangeOrderService, error) {
	publisher, err := outbox.NewPublisher(outboxTable)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithOutbox(publisher),
		services.WithLogger(logrus.NewEntry(log)),
	}
	if analyzer := buildRiskAnalyzer(conf, log); analyzer != nil {
		opts = append(opts, services.WithRiskAnalyzer(analyzer, conf.RiskAI.RequestTimeout))
	}

	return services.NewChangeOrderService(
		persistence.NewPgChangeOrderRepository(),
		persistence.NewPgCatalogRepository(),
		bus,
		opts...,
	), nil
}

func buildRiskAnalyzer(conf *configuration.Configuration, log *logrus.Logger) riskai.Analyzer {
	urls := conf.RiskAI.ProviderURLs()
	if conf.RiskAI.APIKey == "" || len(urls) == 0 {
		log.Info("risk scoring disabled: no API key or providers configured")
		return nil
	}
	providers := make([]riskai.Provider, 0, len(urls))
	for i, url := range urls {
		name := fmt.Sprintf("provider-%d", i+1)
		providers = append(providers, riskai.NewOpenAIProvider(name, conf.RiskAI.APIKey, url, conf.RiskAI.Model))
	}
	return riskai.NewFailoverAnalyzer(logrus.NewEntry(log), riskai.CircuitBreakerConfig{
		FailureThreshold: conf.RiskAI.FailureThreshold,
		FailureWindow:    conf.RiskAI.FailureWindow,
		OpenDuration:     conf.RiskAI.OpenDuration,
	}, providers...)
}

// subscribeNotifier attaches the notification sink. Email delivery belongs
// to a downstream system; here the durable events surface as structured log
// lines.
func subscribeNotifier(bus eventbus.EventBus, log *logrus.Logger) {
	bus.Subscribe(func(event changeorder.NotificationEvent) {
		log.WithFields(logrus.Fields{
			"topic":    event.Topic,
			"chain":    event.Payload.ChainRootID,
			"version":  event.Payload.Version,
			"status":   event.Payload.Status,
			"actor_id": event.Payload.ActorID,
		}).Info("change order notification")
	})
}

func startOutboxRelay(ctx context.Context, conf *configuration.Configuration, log *logrus.Logger, pool *pgxpool.Pool, bus eventbus.EventBusWithError) {
	dispatcher := outboxeventbus.New(bus, decodeNotification)
	relay, err := outbox.NewRelay(pool, dispatcher, outbox.RelayOptions{
		Table:           outboxTable,
		PollInterval:    conf.Outbox.RelayPollInterval,
		BatchSize:       conf.Outbox.RelayBatchSize,
		MaxAttempts:     conf.Outbox.RelayMaxAttempts,
		DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
		LastErrorMax:    conf.Outbox.LastErrorMaxBytes,
		Logger:          logrus.NewEntry(log),
	})
	if err != nil {
		log.WithError(err).Error("failed to configure outbox relay")
		return
	}
	cleaner, err := outbox.NewCleaner(pool, outbox.CleanerOptions{
		Table:  outboxTable,
		Logger: logrus.NewEntry(log),
	})
	if err != nil {
		log.WithError(err).Error("failed to configure outbox cleaner")
		return
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.WithError(err).Error("outbox relay stopped")
		}
	}()
	go func() {
		if err := cleaner.Run(ctx); err != nil {
			log.WithError(err).Error("outbox cleaner stopped")
		}
	}()
}

func decodeNotification(topic string, payload json.RawMessage) (any, error) {
	switch topic {
	case changeorder.TopicCreated,
		changeorder.TopicVersionCreated,
		changeorder.TopicStatusChanged,
		changeorder.TopicCommented,
		changeorder.TopicDeleted:
		var p changeorder.EventPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return changeorder.NotificationEvent{Topic: topic, Payload: p}, nil
	default:
		// Unknown topics are acked so stale rows do not retry forever.
		return nil, nil
	}
}

// applyMigrations runs the .sql files in dir in lexical order. The
// statements are idempotent, so replaying the directory on boot is safe.
func applyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(entries)
	for _, path := range entries {
		ddl, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", path, err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", path, err)
		}
	}
	return nil
}

// poolMiddleware threads the database pool through every request context so
// service transactions can open against it.
func poolMiddleware(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}
