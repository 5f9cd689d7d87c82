package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lifelink-api/internal/app"
	"github.com/lifelink-api/internal/application/bloodrequest"
	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/infrastructure/rabbitmq"
	"github.com/lifelink-api/internal/pkg/logger"
	"go.uber.org/zap"
)

type dispatcher interface {
	Run(ctx context.Context, requestID string) (*domain.DispatchReport, error)
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("wire dependencies", zap.Error(err))
	}
	defer comps.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, rabbitmq.DispatchQueue,
		[]string{domain.EventRequestCreated, domain.EventRequestRedispatch},
		rabbitmq.ConsumerOptions{Workers: cfg.DispatchWorkers, RunTimeout: cfg.DispatchTimeout}, log)
	if err != nil {
		log.Fatal("create consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(handleDispatch(comps.Dispatcher, log))

	// The worker owns expiry and escalation when dispatch runs out of process.
	requestSvc := bloodrequest.NewService(bloodrequest.ServiceDeps{
		RequestRepo:  comps.Requests,
		AttemptRepo:  comps.Attempts,
		ResponseRepo: comps.Responses,
		DonorRepo:    comps.Donors,
		Matcher:      comps.Matcher,
		Queue:        rabbitmq.NewDispatchTrigger(comps.Publisher),
		Events:       comps.Events(),
		Mailer:       comps.Mailer,
		RequestTTL:   cfg.RequestTTL,

		ResponseTimeout: cfg.Notify.ResponseTimeout,
		Logger:          log,
	})
	go app.SweepOpenRequests(ctx, requestSvc, cfg.ExpirySweep, log)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}

// handleDispatch runs one dispatch per trigger event. Outcomes that a retry
// cannot change are marked permanent so the message is dropped.
func handleDispatch(d dispatcher, log *zap.Logger) rabbitmq.MessageHandler {
	return func(ctx context.Context, body json.RawMessage) error {
		var ev domain.RequestEvent
		if err := json.Unmarshal(body, &ev); err != nil || ev.RequestID == "" {
			return &rabbitmq.PermanentError{Err: errors.New("malformed dispatch event")}
		}
		report, err := d.Run(ctx, ev.RequestID)
		switch {
		case err == nil:
			log.Info("dispatch complete",
				zap.String("request_id", ev.RequestID),
				zap.Int("sent", report.Sent()),
				zap.String("stop_reason", report.StopReason),
			)
			return nil
		case errors.Is(err, domain.ErrNoEligibleDonors),
			errors.Is(err, domain.ErrRequestClosed),
			errors.Is(err, domain.ErrNotFound):
			log.Info("dispatch skipped", zap.String("request_id", ev.RequestID), zap.Error(err))
			return &rabbitmq.PermanentError{Err: err}
		default:
			return err
		}
	}
}
