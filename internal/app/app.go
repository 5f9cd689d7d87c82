// Package app wires infrastructure into the dispatch pipeline shared by the
// API and the worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/lifelink-api/internal/application/dispatch"
	"github.com/lifelink-api/internal/application/matching"
	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/infrastructure/dynamo"
	"github.com/lifelink-api/internal/infrastructure/rabbitmq"
	redisinfra "github.com/lifelink-api/internal/infrastructure/redis"
	s3infra "github.com/lifelink-api/internal/infrastructure/s3"
	"github.com/lifelink-api/internal/infrastructure/smtp"
	"github.com/lifelink-api/internal/infrastructure/sns"
	"github.com/lifelink-api/internal/transport/http/handler"
	"go.uber.org/zap"
)

type guard interface {
	Acquire(ctx context.Context, requestID, donorID string, ttl time.Duration) (bool, error)
}

// Components holds everything both binaries need.
type Components struct {
	Dynamo     *dynamodb.Client
	Donors     *dynamo.DonorRepo
	Requests   *dynamo.RequestRepo
	Attempts   *dynamo.AttemptRepo
	Responses  *dynamo.ResponseRepo
	Matcher    *matching.Matcher
	Dispatcher *dispatch.Dispatcher
	Mailer     smtp.Mailer
	// Publisher is nil when AMQP_URL is unset.
	Publisher *rabbitmq.Publisher
	Checks    map[string]handler.Check

	closers []func()
}

// Build connects to every configured backend and assembles the dispatcher.
// Optional backends (Redis, RabbitMQ, S3, SNS) are skipped when unconfigured.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Components, error) {
	mode, err := domain.ParseCompatibilityMode(cfg.Matching.Compatibility)
	if err != nil {
		return nil, fmt.Errorf("MATCH_COMPATIBILITY: %w", err)
	}

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables, log)

	c := &Components{
		Dynamo:    client,
		Donors:    dynamo.NewDonorRepo(client, cfg.DynamoTables.Donors),
		Requests:  dynamo.NewRequestRepo(client, cfg.DynamoTables.BloodRequests),
		Attempts:  dynamo.NewAttemptRepo(client, cfg.DynamoTables.NotificationAttempts),
		Responses: dynamo.NewResponseRepo(client, cfg.DynamoTables.DonorResponses),
		Mailer:    smtp.NewMailer(cfg),
		Checks: map[string]handler.Check{
			"dynamodb": func(ctx context.Context) error {
				return dynamo.Ping(ctx, client, cfg.DynamoTables.BloodRequests)
			},
		},
	}

	var notifyGuard guard = dynamo.NewNotifyGuard(client, cfg.DynamoTables.NotificationLocks)
	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		c.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		notifyGuard = redisinfra.NewNotifyGuard(rdb)
		log.Info("notify guard: redis", zap.String("addr", cfg.RedisAddr))
	}

	var events dispatch.EventPublisher
	if cfg.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.AMQPURL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Publisher = pub
		c.closers = append(c.closers, pub.Close)
		c.Checks["rabbitmq"] = func(context.Context) error {
			if !pub.IsConnected() {
				return fmt.Errorf("amqp connection closed")
			}
			return nil
		}
		events = pub
	}

	channels := []dispatch.Channel{smtp.NewChannel(c.Mailer)}
	if smsCh, err := sns.NewChannel(ctx, cfg); err == nil {
		channels = append(channels, smsCh)
	} else {
		log.Warn("sms channel unavailable", zap.Error(err))
	}

	c.Matcher = matching.NewMatcher(c.Donors, c.Responses, matching.Options{
		Mode:     mode,
		RadiusKm: cfg.Matching.RadiusKm,
		Cooldown: cfg.Matching.DonationCooldown,
	}, log)

	notifier := dispatch.NewNotifier(dispatch.NotifierDeps{
		Channels:  channels,
		Attempts:  c.Attempts,
		Requests:  c.Requests,
		Responses: c.Responses,
		Guard:     notifyGuard,
		Options: dispatch.NotifierOptions{
			Window:       cfg.Notify.Window,
			RetryBackoff: cfg.Notify.RetryBackoff,
			Concurrency:  cfg.Notify.Concurrency,
			MaxContacts:  cfg.Notify.MaxContacts,
			SiteURL:      cfg.Notify.SiteURL,
		},
		Logger: log,
	})

	deps := dispatch.DispatcherDeps{
		Requests:  c.Requests,
		Matcher:   c.Matcher,
		Notifier:  notifier,
		Publisher: events,
		Logger:    log,
	}
	if cfg.ReportBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Reports = s3infra.NewReportStore(s3Client, cfg.ReportBucket)
	}
	c.Dispatcher = dispatch.NewDispatcher(deps)
	return c, nil
}

// Events returns the broker publisher as an interface, or nil without a broker.
func (c *Components) Events() dispatch.EventPublisher {
	if c.Publisher == nil {
		return nil
	}
	return c.Publisher
}

// Close releases connections in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Sweeper is the periodic upkeep of open requests.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int, error)
	EscalateSilent(ctx context.Context) (int, error)
}

// SweepOpenRequests expires stale requests and escalates silent ones every
// interval until ctx is done.
func SweepOpenRequests(ctx context.Context, svc Sweeper, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpireStale(ctx); err != nil {
				log.Error("expiry sweep", zap.Error(err))
			}
			if _, err := svc.EscalateSilent(ctx); err != nil {
				log.Error("escalation sweep", zap.Error(err))
			}
		}
	}
}
