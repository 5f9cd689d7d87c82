package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lifelink-api/internal/app"
	"github.com/lifelink-api/internal/application/bloodrequest"
	"github.com/lifelink-api/internal/application/dispatch"
	"github.com/lifelink-api/internal/application/donor"
	"github.com/lifelink-api/internal/config"
	jwtinfra "github.com/lifelink-api/internal/infrastructure/jwt"
	"github.com/lifelink-api/internal/infrastructure/rabbitmq"
	"github.com/lifelink-api/internal/pkg/logger"
	transporthttp "github.com/lifelink-api/internal/transport/http"
	"go.uber.org/zap"
)

type dispatchQueue interface {
	Enqueue(ctx context.Context, requestID, trigger string) error
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("wire dependencies", zap.Error(err))
	}
	defer comps.Close()

	// JWT provider (optional; auth is a pass-through without a public key).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Warn("JWT provider not available", zap.Error(err))
	}

	// With a broker the worker runs dispatch; otherwise it runs in-process.
	var (
		queue  dispatchQueue
		runner *dispatch.AsyncRunner
	)
	if comps.Publisher != nil {
		queue = rabbitmq.NewDispatchTrigger(comps.Publisher)
		log.Info("dispatch mode: worker", zap.String("exchange", rabbitmq.ExchangeName))
	} else {
		runner = dispatch.NewAsyncRunner(comps.Dispatcher, cfg.DispatchTimeout, log)
		queue = runner
		log.Info("dispatch mode: in-process")
	}

	requestSvc := bloodrequest.NewService(bloodrequest.ServiceDeps{
		RequestRepo:  comps.Requests,
		AttemptRepo:  comps.Attempts,
		ResponseRepo: comps.Responses,
		DonorRepo:    comps.Donors,
		Matcher:      comps.Matcher,
		Queue:        queue,
		Events:       comps.Events(),
		Mailer:       comps.Mailer,
		RequestTTL:   cfg.RequestTTL,

		ResponseTimeout: cfg.Notify.ResponseTimeout,
		Logger:          log,
	})
	donorSvc := donor.NewService(donor.ServiceDeps{DonorRepo: comps.Donors})

	if runner != nil {
		go app.SweepOpenRequests(ctx, requestSvc, cfg.ExpirySweep, log)
	}

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Donors:        donorSvc,
		BloodRequests: requestSvc,
		JWTProvider:   jwtProvider,
		Checks:        comps.Checks,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	if runner != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DispatchTimeout)
		defer cancelDrain()
		if err := runner.Close(drainCtx); err != nil {
			log.Warn("dispatch runs cancelled at shutdown", zap.Error(err))
		}
	}
	log.Info("server stopped")
}
