package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/proxyhq/nudge-engine/internal/ai"
	"github.com/proxyhq/nudge-engine/internal/config"
	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/internal/push"
	"github.com/proxyhq/nudge-engine/pkg/database"
	"github.com/proxyhq/nudge-engine/pkg/messaging"
	"github.com/proxyhq/nudge-engine/pkg/observability"
)

// app holds the wired dispatcher and everything that must be closed with it.
type app struct {
	cfg        *config.Config
	logger     *observability.Logger
	dispatcher *notification.Dispatcher
	redis      *redis.Client

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: observability.NewLoggerWithLevel(cfg.Service, cfg.LogLevel, os.Stderr),
	}

	shutdown, err := observability.InitTracer(ctx, observability.Config{
		ServiceName:    cfg.Service,
		ServiceVersion: version,
		Endpoint:       cfg.OTel.Endpoint,
		Environment:    cfg.OTel.Environment,
	})
	if err != nil {
		a.logger.Warn("failed to init tracer", "error", err)
	} else {
		a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	store := notification.NewPostgresStore(db, cfg.Dispatch.PageSize)

	completer := ai.New(ai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	})
	if !completer.Available() {
		a.logger.Warn("OPENAI_API_KEY not set, every nudge will use persona fallback content")
	}
	generator := notification.NewGenerator(completer, cfg.OpenAI.MaxTokens, a.logger.Logger)

	transport := push.NewWebPushTransport(push.Options{
		TTL:     cfg.Push.TTL,
		Urgency: cfg.Push.Urgency,
		Timeout: cfg.Push.Timeout,
	})
	deliverer := notification.NewDeliverer(transport, cfg.VAPIDKeys(), cfg.PayloadMeta())
	selector := notification.NewSelector(nil, cfg.Dispatch.FunctionalProbability)

	opts := []notification.Option{notification.WithLogger(a.logger.Logger)}

	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: redis url: %w", notification.ErrConfiguration, err)
		}
		a.redis = redis.NewClient(redisOpts)
		a.closers = append(a.closers, a.redis.Close)
		opts = append(opts, notification.WithLocker(notification.NewRunLock(a.redis, cfg.Redis.LockKey, cfg.Redis.LockTTL)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, notification.WithEvents(notification.NewEventEmitter(producer, a.logger.Logger)))
	}

	if cfg.Resend.APIKey != "" && len(cfg.Resend.AlertTo) > 0 {
		sender := notification.NewEmailService(cfg.Resend.APIKey, cfg.Resend.From)
		opts = append(opts, notification.WithAlerter(notification.NewEmailAlerter(sender, cfg.Resend.AlertTo, cfg.Resend.FailureRatio, a.logger.Logger)))
	}

	a.dispatcher = notification.NewDispatcher(store, selector, generator, deliverer, cfg.DispatcherConfig(), opts...)
	return a, nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required", notification.ErrConfiguration)
	}
	return database.Connect(ctx, cfg.Database.URL, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func newRabbitMQ(cfg *config.Config, logger *slog.Logger) (*messaging.RabbitMQClient, error) {
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%w: RABBITMQ_URL is required", notification.ErrConfiguration)
	}
	rc := messaging.DefaultConfig()
	rc.URL = cfg.RabbitMQ.URL
	rc.Logger = logger
	return messaging.NewRabbitMQClient(rc), nil
}
