package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockChannel struct {
	mock.Mock
	name domain.Channel
}

func (m *mockChannel) Name() domain.Channel { return m.name }
func (m *mockChannel) Send(ctx context.Context, recipient, message string) error {
	return m.Called(ctx, recipient, message).Error(0)
}

type mockAttemptStore struct{ mock.Mock }

func (m *mockAttemptStore) Put(ctx context.Context, a *domain.NotificationAttempt) error {
	return m.Called(ctx, a).Error(0)
}

type mockRequestStore struct{ mock.Mock }

func (m *mockRequestStore) Get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRequestStore) TransitionStatus(ctx context.Context, requestID string, from, to domain.RequestStatus) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requestID, from, to)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockResponseCounter struct{ mock.Mock }

func (m *mockResponseCounter) AcceptedCount(ctx context.Context, requestID string) (int, error) {
	args := m.Called(ctx, requestID)
	return args.Int(0), args.Error(1)
}

type mockMatcher struct{ mock.Mock }

func (m *mockMatcher) Match(ctx context.Context, req *domain.BloodRequest) ([]domain.Match, error) {
	args := m.Called(ctx, req)
	ms, _ := args.Get(0).([]domain.Match)
	return ms, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, req *domain.BloodRequest, matches []domain.Match) ([]domain.NotificationAttempt, string, error) {
	args := m.Called(ctx, req, matches)
	as, _ := args.Get(0).([]domain.NotificationAttempt)
	return as, args.String(1), args.Error(2)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}

// memGuard behaves like the conditional-put guard: first acquire wins until ttl.
type memGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
	err  error
}

func newMemGuard(now func() time.Time) *memGuard {
	return &memGuard{held: map[string]time.Time{}, now: now}
}

func (g *memGuard) Acquire(_ context.Context, requestID, donorID string, ttl time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	key := fmt.Sprintf("%s#%s", requestID, donorID)
	if exp, ok := g.held[key]; ok && g.now().Before(exp) {
		return false, nil
	}
	g.held[key] = g.now().Add(ttl)
	return true, nil
}
