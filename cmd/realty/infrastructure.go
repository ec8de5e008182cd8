package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"realty/internal/app/bootstrap"
	"realty/internal/app/middleware"
	appoutbox "realty/internal/app/outbox"
	"realty/internal/app/policies"
	"realty/internal/app/uow"
	"realty/internal/infra/broker/kafka"
	"realty/internal/infra/calendarfeed"
	"realty/internal/infra/config"
	mongostore "realty/internal/infra/db/mongo"
	"realty/internal/infra/ical"
	"realty/internal/infra/inbox"
	redislock "realty/internal/infra/locks/redis"
	"realty/internal/infra/obs"
	"realty/internal/infra/outbox"
	"realty/internal/infra/payments/stripe"
	"realty/internal/infra/security"
	"realty/internal/infra/storage/memory"
	"realty/internal/infra/storage/s3"
	"realty/internal/infra/validation"
)

const (
	productID      = "-//realty//availability//EN"
	eventSource    = "realty"
	inboxConsumer  = "payments.webhook"
	lockKeysPrefix = "realty:lock:"
)

// outboxStore is what both storage backends offer the pipeline and the relay.
type outboxStore interface {
	appoutbox.Outbox
	outbox.Source
}

type infrastructure struct {
	deps        bootstrap.Deps
	relay       relay
	checks      map[string]obs.Check
	operatorKey security.OperatorKey
	closers     []func(context.Context) error
}

func (i *infrastructure) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

func buildInfrastructure(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{
		checks:      map[string]obs.Check{},
		operatorKey: security.OperatorKey{Hash: cfg.OperatorKeyHash},
	}

	var (
		factory uow.UoWFactory
		store   outboxStore
		idStore middleware.IdempotencyStore
		box     policies.Inbox
	)
	switch cfg.Storage {
	case "mongo":
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		infra.closers = append(infra.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		factory = mongostore.NewFactory(client.DB)
		if store, err = outbox.NewStore(ctx, client.DB); err != nil {
			return nil, fmt.Errorf("outbox store: %w", err)
		}
		if idStore, err = mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		if box, err = inbox.NewStore(ctx, client.DB, inboxConsumer); err != nil {
			return nil, fmt.Errorf("inbox store: %w", err)
		}
		infra.checks["mongo"] = client.Ping
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		factory = memory.NewStore()
		store = memory.NewOutbox()
		idStore = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		box = memory.NewInbox()
	}

	var locker policies.Locker = memory.NewLocker()
	if cfg.RedisAddr != "" {
		client := redislock.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		infra.closers = append(infra.closers, func(context.Context) error { return client.Close() })
		infra.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		locker = &redislock.Locker{Client: client, Prefix: lockKeysPrefix, Logger: logger}
	}

	var producer outbox.Producer = kafka.LogProducer{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		infra.closers = append(infra.closers, func(context.Context) error { return p.Close() })
		producer = p
	}

	gateway, verifier, err := paymentAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}

	var publisher policies.CalendarPublisher
	if cfg.S3Endpoint != "" {
		p, err := s3.NewPublisher(s3.Config{
			Endpoint:      cfg.S3Endpoint,
			UseSSL:        cfg.S3UseSSL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("calendar publisher: %w", err)
		}
		publisher = p
	}

	infra.deps = bootstrap.Deps{
		UoWFactory:  factory,
		Outbox:      store,
		Idempotency: idStore,
		Validator:   validation.New(),
		Gateway:     gateway,
		Verifier:    verifier,
		Inbox:       box,
		Notifier:    kafka.EmailNotifier{Producer: producer, Topic: cfg.EmailTopic},
		Fetcher:     calendarfeed.NewFetcher(cfg.FeedTimeout, logger),
		Codec:       ical.Codec{ProductID: productID},
		Locker:      locker,
		Publisher:   publisher,
		Logger:      logger,
	}
	infra.relay = relay{worker: &outbox.Worker{
		Store:       store,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      eventSource,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}}
	return infra, nil
}

// paymentAdapters falls back to the disabled provider outside production when keys
// are missing; config validation already rejects that in production.
func paymentAdapters(cfg config.Config, logger *slog.Logger) (policies.PaymentGateway, policies.PaymentEventVerifier, error) {
	var (
		gateway  policies.PaymentGateway       = stripe.Disabled{}
		verifier policies.PaymentEventVerifier = stripe.Disabled{}
	)
	g, err := stripe.NewGateway(cfg.StripeSecretKey, nil)
	switch {
	case err == nil:
		gateway = g
	case errors.Is(err, stripe.ErrNotConfigured):
		logger.Warn("stripe secret key missing; checkout disabled")
	default:
		return nil, nil, fmt.Errorf("stripe gateway: %w", err)
	}
	v, err := stripe.NewVerifier(cfg.StripeWebhookSecret)
	switch {
	case err == nil:
		verifier = v
	case errors.Is(err, stripe.ErrNotConfigured):
		logger.Warn("stripe webhook secret missing; payment webhooks rejected")
	default:
		return nil, nil, fmt.Errorf("stripe webhook verifier: %w", err)
	}
	return gateway, verifier, nil
}

type relay struct {
	worker *outbox.Worker
}

func (r relay) run(ctx context.Context, logger *slog.Logger) {
	if r.worker == nil {
		return
	}
	if err := r.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("outbox relay stopped", "error", err)
	}
}
