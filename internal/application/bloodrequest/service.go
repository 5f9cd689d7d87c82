package bloodrequest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/pkg/id"
	"go.uber.org/zap"
)

const defaultUnits = 1

type Service interface {
	Create(ctx context.Context, requesterID string, in domain.CreateBloodRequestInput) (*domain.BloodRequest, error)
	Get(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	ListOpen(ctx context.Context) ([]domain.PrioritizedRequest, error)
	Attempts(ctx context.Context, requestID string) ([]domain.NotificationAttempt, error)
	Matches(ctx context.Context, requestID string) ([]domain.Match, error)
	Redispatch(ctx context.Context, requestID string) error
	Fulfill(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	Cancel(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	Respond(ctx context.Context, requestID string, in domain.RespondInput) (*domain.DonorResponse, error)
	ExpireStale(ctx context.Context) (int, error)
	EscalateSilent(ctx context.Context) (int, error)
}

type requestStore interface {
	Put(ctx context.Context, r *domain.BloodRequest) error
	Get(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	TransitionStatus(ctx context.Context, requestID string, from, to domain.RequestStatus) (*domain.BloodRequest, error)
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.BloodRequest, error)
}

type attemptStore interface {
	ListByRequest(ctx context.Context, requestID string) ([]domain.NotificationAttempt, error)
}

type responseStore interface {
	Put(ctx context.Context, r *domain.DonorResponse) error
	AcceptedCount(ctx context.Context, requestID string) (int, error)
}

type donorReader interface {
	Get(ctx context.Context, donorID string) (*domain.DonorProfile, error)
}

type matcher interface {
	Match(ctx context.Context, req *domain.BloodRequest) ([]domain.Match, error)
	CanServe(req *domain.BloodRequest, d *domain.DonorProfile) bool
}

// dispatchQueue schedules a dispatch run; trigger is the routing key that
// caused it.
type dispatchQueue interface {
	Enqueue(ctx context.Context, requestID, trigger string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type service struct {
	requests  requestStore
	attempts  attemptStore
	responses responseStore
	donors    donorReader
	matcher   matcher
	queue     dispatchQueue
	events    eventPublisher
	mailer    mailer
	ttl       time.Duration
	silence   time.Duration
	log       *zap.Logger
	now       func() time.Time

	// escalated remembers the latest attempt each request was escalated for.
	mu        sync.Mutex
	escalated map[string]time.Time
}

type ServiceDeps struct {
	RequestRepo  requestStore
	AttemptRepo  attemptStore
	ResponseRepo responseStore
	DonorRepo    donorReader
	Matcher      matcher
	Queue        dispatchQueue
	Events       eventPublisher // nil when no broker is configured
	Mailer       mailer         // nil disables requester emails
	RequestTTL   time.Duration

	// ResponseTimeout is how long contacted donors may stay silent before
	// the request is redispatched. Zero disables escalation.
	ResponseTimeout time.Duration
	Logger          *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		requests:  deps.RequestRepo,
		attempts:  deps.AttemptRepo,
		responses: deps.ResponseRepo,
		donors:    deps.DonorRepo,
		matcher:   deps.Matcher,
		queue:     deps.Queue,
		events:    deps.Events,
		mailer:    deps.Mailer,
		ttl:       deps.RequestTTL,
		silence:   deps.ResponseTimeout,
		log:       deps.Logger,
		now:       time.Now,
		escalated: make(map[string]time.Time),
	}
}

func (s *service) Create(ctx context.Context, requesterID string, in domain.CreateBloodRequestInput) (*domain.BloodRequest, error) {
	bt, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return nil, err
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, fmt.Errorf("request location is required: %w", domain.ErrBadRequest)
	}
	units := in.UnitsNeeded
	if units < 1 {
		units = defaultUnits
	}
	now := s.now().UTC()
	r := &domain.BloodRequest{
		RequestID:      id.New(),
		RequesterID:    requesterID,
		RequesterName:  in.RequesterName,
		RequesterEmail: in.RequesterEmail,
		BloodType:      bt,
		Latitude:       *in.Latitude,
		Longitude:      *in.Longitude,
		Urgency:        domain.Urgency(in.Urgency),
		UnitsNeeded:    units,
		Notes:          in.Notes,
		Status:         domain.RequestOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.requests.Put(ctx, r); err != nil {
		return nil, fmt.Errorf("put blood request: %w", err)
	}

	s.log.Info("blood request created",
		zap.String("request_id", r.RequestID),
		zap.String("blood_type", string(r.BloodType)),
		zap.String("urgency", string(r.Urgency)),
	)
	if err := s.queue.Enqueue(ctx, r.RequestID, domain.EventRequestCreated); err != nil {
		// The request stays open; a manual redispatch picks it up.
		s.log.Error("enqueue dispatch", zap.String("request_id", r.RequestID), zap.Error(err))
	}
	return r, nil
}

func (s *service) Get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	return s.requests.Get(ctx, requestID)
}

func (s *service) ListOpen(ctx context.Context) ([]domain.PrioritizedRequest, error) {
	reqs, err := s.requests.ListByStatus(ctx, domain.RequestOpen)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	live := reqs[:0]
	for _, r := range reqs {
		if r.IsOpen(now) {
			live = append(live, r)
		}
	}
	return Prioritize(live, now), nil
}

func (s *service) Attempts(ctx context.Context, requestID string) ([]domain.NotificationAttempt, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.attempts.ListByRequest(ctx, requestID)
}

// Matches previews the current ranking without notifying anyone.
func (s *service) Matches(ctx context.Context, requestID string) ([]domain.Match, error) {
	r, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	ms, err := s.matcher.Match(ctx, r)
	if errors.Is(err, domain.ErrNoEligibleDonors) {
		return []domain.Match{}, nil
	}
	return ms, err
}

func (s *service) Redispatch(ctx context.Context, requestID string) error {
	r, err := s.openRequest(ctx, requestID)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, r.RequestID, domain.EventRequestRedispatch)
}

func (s *service) Fulfill(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	r, err := s.requests.TransitionStatus(ctx, requestID, domain.RequestOpen, domain.RequestFulfilled)
	if err != nil {
		return nil, fmt.Errorf("fulfil request %s: %w", requestID, err)
	}
	s.publish(ctx, domain.EventRequestFulfilled, r)
	return r, nil
}

func (s *service) Cancel(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	r, err := s.requests.TransitionStatus(ctx, requestID, domain.RequestOpen, domain.RequestCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel request %s: %w", requestID, err)
	}
	s.publish(ctx, domain.EventRequestClosed, r)
	return r, nil
}

func (s *service) Respond(ctx context.Context, requestID string, in domain.RespondInput) (*domain.DonorResponse, error) {
	r, err := s.openRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	donor, err := s.donors.Get(ctx, in.DonorID)
	if err != nil {
		return nil, err
	}
	status := domain.ResponseStatus(in.Status)
	if status == domain.ResponseAccepted && !s.matcher.CanServe(r, donor) {
		return nil, fmt.Errorf("donor %s cannot serve request %s: %w", donor.DonorID, requestID, domain.ErrForbidden)
	}

	resp := &domain.DonorResponse{
		RequestID: requestID,
		DonorID:   donor.DonorID,
		Status:    status,
		Notes:     in.Notes,
		CreatedAt: s.now().UTC(),
	}
	if err := s.responses.Put(ctx, resp); err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}

	switch resp.Status {
	case domain.ResponseAccepted:
		s.onAccepted(ctx, r, donor)
	case domain.ResponseDeclined:
		if err := s.queue.Enqueue(ctx, requestID, domain.EventRequestRedispatch); err != nil {
			s.log.Error("enqueue redispatch after decline", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	return resp, nil
}

func (s *service) onAccepted(ctx context.Context, r *domain.BloodRequest, donor *domain.DonorProfile) {
	accepted, err := s.responses.AcceptedCount(ctx, r.RequestID)
	if err != nil {
		s.log.Error("count accepted responses", zap.String("request_id", r.RequestID), zap.Error(err))
		return
	}
	s.notifyRequester(r, donor, accepted)

	if accepted < r.UnitsNeeded {
		return
	}
	fulfilled, err := s.requests.TransitionStatus(ctx, r.RequestID, domain.RequestOpen, domain.RequestFulfilled)
	switch {
	case errors.Is(err, domain.ErrConflict):
		// Someone else closed it first.
	case err != nil:
		s.log.Error("fulfil after acceptance", zap.String("request_id", r.RequestID), zap.Error(err))
	default:
		s.log.Info("blood request fulfilled", zap.String("request_id", r.RequestID), zap.Int("accepted", accepted))
		s.publish(ctx, domain.EventRequestFulfilled, fulfilled)
	}
}

func (s *service) notifyRequester(r *domain.BloodRequest, donor *domain.DonorProfile, accepted int) {
	if s.mailer == nil || r.RequesterEmail == nil || *r.RequesterEmail == "" {
		return
	}
	subject := fmt.Sprintf("Donor accepted your %s request", r.BloodType)
	body := fmt.Sprintf("%s (%s) accepted your request for %s blood.\r\nAccepted so far: %d of %d unit(s).\r\nContact: %s",
		donor.FullName, donor.BloodType, r.BloodType, accepted, r.UnitsNeeded, donor.Email)
	if err := s.mailer.SendEmail(*r.RequesterEmail, subject, body); err != nil {
		s.log.Warn("email requester", zap.String("request_id", r.RequestID), zap.Error(err))
	}
}

// ExpireStale closes open requests past their expiry and returns how many it moved.
func (s *service) ExpireStale(ctx context.Context) (int, error) {
	reqs, err := s.requests.ListByStatus(ctx, domain.RequestOpen)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	n := 0
	for _, r := range reqs {
		if now.Before(r.ExpiresAt) {
			continue
		}
		expired, err := s.requests.TransitionStatus(ctx, r.RequestID, domain.RequestOpen, domain.RequestExpired)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("expire request %s: %w", r.RequestID, err)
		}
		n++
		s.publish(ctx, domain.EventRequestClosed, expired)
	}
	if n > 0 {
		s.log.Info("expired stale blood requests", zap.Int("count", n))
	}
	return n, nil
}

// EscalateSilent redispatches open requests that are still short of accepted
// donors when everyone contacted has been silent for the response timeout.
// Each silent batch is escalated once; the notify guard keeps already
// contacted donors from being alerted again.
func (s *service) EscalateSilent(ctx context.Context) (int, error) {
	if s.silence <= 0 {
		return 0, nil
	}
	reqs, err := s.requests.ListByStatus(ctx, domain.RequestOpen)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	live := make(map[string]struct{}, len(reqs))
	n := 0
	for _, r := range reqs {
		if !r.IsOpen(now) {
			continue
		}
		live[r.RequestID] = struct{}{}

		attempts, err := s.attempts.ListByRequest(ctx, r.RequestID)
		if err != nil {
			return n, fmt.Errorf("list attempts for %s: %w", r.RequestID, err)
		}
		last, ok := latestAttempt(attempts)
		if !ok || now.Sub(last) < s.silence || s.wasEscalated(r.RequestID, last) {
			continue
		}
		accepted, err := s.responses.AcceptedCount(ctx, r.RequestID)
		if err != nil {
			return n, fmt.Errorf("count accepted for %s: %w", r.RequestID, err)
		}
		if accepted >= r.UnitsNeeded {
			continue
		}
		if err := s.queue.Enqueue(ctx, r.RequestID, domain.EventRequestRedispatch); err != nil {
			return n, fmt.Errorf("enqueue escalation for %s: %w", r.RequestID, err)
		}
		s.markEscalated(r.RequestID, last)
		n++
	}
	s.forgetClosed(live)

	if n > 0 {
		s.log.Info("escalated silent blood requests", zap.Int("count", n))
	}
	return n, nil
}

func latestAttempt(as []domain.NotificationAttempt) (time.Time, bool) {
	var last time.Time
	for _, a := range as {
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}
	return last, !last.IsZero()
}

func (s *service) wasEscalated(requestID string, last time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.escalated[requestID]
	return ok && !last.After(at)
}

func (s *service) markEscalated(requestID string, last time.Time) {
	s.mu.Lock()
	s.escalated[requestID] = last
	s.mu.Unlock()
}

func (s *service) forgetClosed(live map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for requestID := range s.escalated {
		if _, ok := live[requestID]; !ok {
			delete(s.escalated, requestID)
		}
	}
}

func (s *service) openRequest(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	r, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsOpen(s.now().UTC()) {
		return nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, domain.ErrRequestClosed)
	}
	return r, nil
}

func (s *service) publish(ctx context.Context, key string, r *domain.BloodRequest) {
	if s.events == nil {
		return
	}
	ev := domain.RequestEvent{
		RequestID:  r.RequestID,
		Status:     r.Status,
		BloodType:  r.BloodType,
		Urgency:    r.Urgency,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, key, ev); err != nil {
		s.log.Warn("publish event", zap.String("routing_key", key), zap.String("request_id", r.RequestID), zap.Error(err))
	}
}
