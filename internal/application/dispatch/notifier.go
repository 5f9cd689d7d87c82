package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/observability/metrics"
	"github.com/lifelink-api/internal/pkg/backoff"
	"github.com/lifelink-api/internal/pkg/id"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type attemptStore interface {
	Put(ctx context.Context, a *domain.NotificationAttempt) error
}

type requestReader interface {
	Get(ctx context.Context, requestID string) (*domain.BloodRequest, error)
}

type responseCounter interface {
	AcceptedCount(ctx context.Context, requestID string) (int, error)
}

// notifyGuard is an atomic acquire on (request, donor). It returns false when
// the pair is already held.
type notifyGuard interface {
	Acquire(ctx context.Context, requestID, donorID string, ttl time.Duration) (bool, error)
}

type NotifierOptions struct {
	Window       time.Duration
	RetryBackoff time.Duration
	Concurrency  int
	MaxContacts  int
	SiteURL      string
}

type NotifierDeps struct {
	Channels  []Channel
	Attempts  attemptStore
	Requests  requestReader
	Responses responseCounter
	Guard     notifyGuard
	Options   NotifierOptions
	Logger    *zap.Logger
}

// Notifier fans alerts out to ranked donors in waves, re-checking the request
// between waves.
type Notifier struct {
	channels  map[domain.Channel]Channel
	attempts  attemptStore
	requests  requestReader
	responses responseCounter
	guard     notifyGuard
	opts      NotifierOptions
	log       *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewNotifier(deps NotifierDeps) *Notifier {
	chs := make(map[domain.Channel]Channel, len(deps.Channels))
	for _, c := range deps.Channels {
		if c != nil {
			chs[c.Name()] = c
		}
	}
	opts := deps.Options
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Notifier{
		channels:  chs,
		attempts:  deps.Attempts,
		requests:  deps.Requests,
		responses: deps.Responses,
		guard:     deps.Guard,
		opts:      opts,
		log:       deps.Logger,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// job is one donor selected for the current wave.
type job struct {
	match     domain.Match
	channel   Channel
	recipient string
}

// Notify contacts donors from matches in order until the list is exhausted,
// the contact cap is hit, or the request stops needing donors. It returns the
// attempts made and why it stopped.
func (n *Notifier) Notify(ctx context.Context, req *domain.BloodRequest, matches []domain.Match) ([]domain.NotificationAttempt, string, error) {
	var attempts []domain.NotificationAttempt
	contacted := 0
	next := 0

	for {
		if next >= len(matches) {
			return attempts, domain.StopExhausted, nil
		}
		if n.opts.MaxContacts > 0 && contacted >= n.opts.MaxContacts {
			return attempts, domain.StopContactLimit, nil
		}
		if ctx.Err() != nil {
			return attempts, domain.StopCancelled, nil
		}

		current, reason, err := n.stillNeeded(ctx, req.RequestID)
		if err != nil {
			return attempts, "", err
		}
		if reason != "" {
			return attempts, reason, nil
		}

		size := n.opts.Concurrency
		if n.opts.MaxContacts > 0 && n.opts.MaxContacts-contacted < size {
			size = n.opts.MaxContacts - contacted
		}
		var wave []job
		wave, next = n.nextWave(ctx, current, matches, next, size)
		if len(wave) == 0 {
			continue
		}

		results := make([]domain.NotificationAttempt, len(wave))
		var g errgroup.Group
		for i, j := range wave {
			i, j := i, j
			g.Go(func() error {
				results[i] = n.contact(ctx, current, j)
				return nil
			})
		}
		_ = g.Wait()

		attempts = append(attempts, results...)
		contacted += len(wave)
	}
}

// stillNeeded re-reads the request and returns a stop reason when no more
// donors should be contacted.
func (n *Notifier) stillNeeded(ctx context.Context, requestID string) (*domain.BloodRequest, string, error) {
	current, err := n.requests.Get(ctx, requestID)
	if err != nil {
		return nil, "", fmt.Errorf("reload request: %w", err)
	}
	if !current.IsOpen(n.now().UTC()) {
		return nil, domain.StopRequestClosed, nil
	}
	accepted, err := n.responses.AcceptedCount(ctx, requestID)
	if err != nil {
		return nil, "", fmt.Errorf("count accepted responses: %w", err)
	}
	units := current.UnitsNeeded
	if units < 1 {
		units = 1
	}
	if accepted >= units {
		return nil, domain.StopSatisfied, nil
	}
	return current, "", nil
}

// nextWave walks matches from start and picks up to size reachable donors
// whose notify guard could be acquired. It returns the wave and the index of
// the first unvisited match.
func (n *Notifier) nextWave(ctx context.Context, req *domain.BloodRequest, matches []domain.Match, start, size int) ([]job, int) {
	var wave []job
	i := start
	for ; i < len(matches) && len(wave) < size; i++ {
		m := matches[i]
		ch, recipient := n.route(&m.Donor)
		if ch == nil {
			metrics.NotificationsSkipped.WithLabelValues("unreachable").Inc()
			n.log.Debug("donor has no reachable channel",
				zap.String("request_id", req.RequestID), zap.String("donor_id", m.Donor.DonorID))
			continue
		}
		ok, err := n.guard.Acquire(ctx, req.RequestID, m.Donor.DonorID, n.opts.Window)
		if err != nil {
			metrics.NotificationsSkipped.WithLabelValues("guard_error").Inc()
			n.log.Warn("notify guard unavailable, skipping donor",
				zap.String("request_id", req.RequestID), zap.String("donor_id", m.Donor.DonorID), zap.Error(err))
			continue
		}
		if !ok {
			metrics.NotificationsSkipped.WithLabelValues("already_notified").Inc()
			continue
		}
		wave = append(wave, job{match: m, channel: ch, recipient: recipient})
	}
	return wave, i
}

// route picks the preferred channel, falling back to the other one when the
// preferred is unconfigured or the donor has no address for it.
func (n *Notifier) route(d *domain.DonorProfile) (Channel, string) {
	for _, name := range channelOrder(d) {
		ch, ok := n.channels[name]
		if !ok {
			continue
		}
		if r := recipientFor(d, name); r != "" {
			return ch, r
		}
	}
	return nil, ""
}

func (n *Notifier) contact(ctx context.Context, req *domain.BloodRequest, j job) domain.NotificationAttempt {
	msg := AlertMessage(req, j.match, n.opts.SiteURL)
	tries, err := n.deliver(ctx, j.channel, j.recipient, msg)

	a := domain.NotificationAttempt{
		RequestID:  req.RequestID,
		AttemptID:  id.New(),
		DonorID:    j.match.Donor.DonorID,
		Channel:    j.channel.Name(),
		Recipient:  j.recipient,
		Tries:      tries,
		Outcome:    domain.OutcomeSent,
		DistanceKm: j.match.DistanceKm,
		CreatedAt:  n.now().UTC(),
	}
	if err != nil {
		a.Outcome = domain.OutcomeFailed
		a.Error = err.Error()
		n.log.Warn("alert delivery failed",
			zap.String("request_id", req.RequestID),
			zap.String("donor_id", a.DonorID),
			zap.String("channel", string(a.Channel)),
			zap.Int("tries", tries),
			zap.Error(err),
		)
	}
	metrics.NotificationAttempts.WithLabelValues(string(a.Channel), string(a.Outcome)).Inc()

	// Record the attempt even if the run was cancelled mid-send.
	if perr := n.attempts.Put(context.WithoutCancel(ctx), &a); perr != nil {
		n.log.Error("persist notification attempt",
			zap.String("request_id", req.RequestID),
			zap.String("donor_id", a.DonorID),
			zap.Error(perr),
		)
	}
	return a
}

// deliver sends once and retries a single time after backoff on transient errors.
func (n *Notifier) deliver(ctx context.Context, ch Channel, recipient, msg string) (int, error) {
	var err error
	for try := 1; try <= 2; try++ {
		if try > 1 {
			if serr := n.sleep(ctx, backoff.RetryDelay(try, n.opts.RetryBackoff)); serr != nil {
				return try - 1, err
			}
		}
		start := time.Now()
		err = ch.Send(ctx, recipient, msg)
		metrics.ObserveSend(string(ch.Name()), err == nil, start)
		if err == nil || errors.Is(err, domain.ErrUndeliverable) || ctx.Err() != nil {
			return try, err
		}
	}
	return 2, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
