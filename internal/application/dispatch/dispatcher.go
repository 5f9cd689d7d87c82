package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/observability/metrics"
	"github.com/lifelink-api/internal/pkg/id"
	"go.uber.org/zap"
)

type requestStore interface {
	Get(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	TransitionStatus(ctx context.Context, requestID string, from, to domain.RequestStatus) (*domain.BloodRequest, error)
}

type matcher interface {
	Match(ctx context.Context, req *domain.BloodRequest) ([]domain.Match, error)
}

type notifier interface {
	Notify(ctx context.Context, req *domain.BloodRequest, matches []domain.Match) ([]domain.NotificationAttempt, string, error)
}

type reportArchive interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// EventPublisher emits domain events keyed by routing key.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type DispatcherDeps struct {
	Requests  requestStore
	Matcher   matcher
	Notifier  notifier
	Reports   reportArchive // nil disables archiving
	Publisher EventPublisher
	Logger    *zap.Logger
}

// Dispatcher runs the match-then-notify task for one request.
type Dispatcher struct {
	requests  requestStore
	matcher   matcher
	notifier  notifier
	reports   reportArchive
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		requests:  deps.Requests,
		matcher:   deps.Matcher,
		notifier:  deps.Notifier,
		reports:   deps.Reports,
		publisher: deps.Publisher,
		log:       deps.Logger,
		now:       time.Now,
	}
}

// Run dispatches alerts for requestID. It returns ErrRequestClosed for a
// request that is no longer open and ErrNoEligibleDonors when nobody matched;
// in both cases the returned report is still populated.
func (d *Dispatcher) Run(ctx context.Context, requestID string) (*domain.DispatchReport, error) {
	report := &domain.DispatchReport{
		RunID:     id.New(),
		RequestID: requestID,
		StartedAt: d.now().UTC(),
	}

	req, err := d.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestOpen {
		report.StopReason = domain.StopRequestClosed
		return d.finish(ctx, report, req, fmt.Errorf("request %s is %s: %w", requestID, req.Status, domain.ErrRequestClosed))
	}
	if !req.IsOpen(report.StartedAt) {
		if _, terr := d.requests.TransitionStatus(ctx, requestID, domain.RequestOpen, domain.RequestExpired); terr == nil {
			d.publish(ctx, domain.EventRequestClosed, domain.RequestEvent{RequestID: requestID, Status: domain.RequestExpired, OccurredAt: d.now().UTC()})
		} else if !errors.Is(terr, domain.ErrConflict) {
			d.log.Warn("expire request", zap.String("request_id", requestID), zap.Error(terr))
		}
		report.StopReason = domain.StopRequestClosed
		return d.finish(ctx, report, req, fmt.Errorf("request %s expired: %w", requestID, domain.ErrRequestClosed))
	}

	matches, err := d.matcher.Match(ctx, req)
	metrics.MatchesFound.Observe(float64(len(matches)))
	if errors.Is(err, domain.ErrNoEligibleDonors) {
		report.StopReason = domain.StopNoMatches
		d.publish(ctx, domain.EventRequestUnmatched, domain.RequestEvent{
			RequestID:  requestID,
			BloodType:  req.BloodType,
			Urgency:    req.Urgency,
			StopReason: report.StopReason,
			OccurredAt: d.now().UTC(),
		})
		return d.finish(ctx, report, req, err)
	}
	if err != nil {
		return nil, fmt.Errorf("match donors: %w", err)
	}
	report.Matches = domain.Ranked(matches)

	attempts, reason, err := d.notifier.Notify(ctx, req, matches)
	report.Attempts = attempts
	report.StopReason = reason
	if err != nil {
		return nil, fmt.Errorf("notify donors: %w", err)
	}

	d.publish(ctx, domain.EventRequestDispatched, domain.RequestEvent{
		RequestID:  requestID,
		BloodType:  req.BloodType,
		Urgency:    req.Urgency,
		Matched:    len(matches),
		Sent:       report.Sent(),
		StopReason: reason,
		OccurredAt: d.now().UTC(),
	})
	return d.finish(ctx, report, req, nil)
}

func (d *Dispatcher) finish(ctx context.Context, report *domain.DispatchReport, req *domain.BloodRequest, runErr error) (*domain.DispatchReport, error) {
	report.FinishedAt = d.now().UTC()
	metrics.DispatchRuns.WithLabelValues(report.StopReason).Inc()

	d.log.Info("dispatch finished",
		zap.String("request_id", report.RequestID),
		zap.String("run_id", report.RunID),
		zap.String("blood_type", string(req.BloodType)),
		zap.Int("matches", len(report.Matches)),
		zap.Int("attempts", len(report.Attempts)),
		zap.Int("sent", report.Sent()),
		zap.String("stop_reason", report.StopReason),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)

	if report.StopReason != domain.StopRequestClosed {
		d.archive(ctx, report)
	}
	return report, runErr
}

// ReportKey is the object key a run's report is archived under.
func ReportKey(requestID, runID string) string {
	return fmt.Sprintf("dispatch-reports/%s/%s.json", requestID, runID)
}

func (d *Dispatcher) archive(ctx context.Context, report *domain.DispatchReport) {
	if d.reports == nil {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		d.log.Error("marshal dispatch report", zap.Error(err))
		return
	}
	if _, err := d.reports.Upload(context.WithoutCancel(ctx), ReportKey(report.RequestID, report.RunID), bytes.NewReader(body), "application/json"); err != nil {
		d.log.Warn("archive dispatch report", zap.String("request_id", report.RequestID), zap.Error(err))
	}
}

func (d *Dispatcher) publish(ctx context.Context, key string, ev domain.RequestEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, key, ev); err != nil {
		d.log.Warn("publish event", zap.String("routing_key", key), zap.String("request_id", ev.RequestID), zap.Error(err))
	}
}
