package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifelink-api/internal/domain"
	jwtinfra "github.com/lifelink-api/internal/infrastructure/jwt"
	"github.com/lifelink-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

type mockDonorSvc struct{ mock.Mock }

func (m *mockDonorSvc) Register(ctx context.Context, req domain.CreateDonorRequest) (*domain.DonorProfile, error) {
	args := m.Called(ctx, req)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDonorSvc) Get(ctx context.Context, donorID string) (*domain.DonorProfile, error) {
	args := m.Called(ctx, donorID)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDonorSvc) Update(ctx context.Context, donorID string, req domain.UpdateDonorRequest) (*domain.DonorProfile, error) {
	args := m.Called(ctx, donorID, req)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDonorSvc) SetAvailability(ctx context.Context, donorID string, available bool) (*domain.DonorProfile, error) {
	args := m.Called(ctx, donorID, available)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDonorSvc) RecordDonation(ctx context.Context, donorID string, req domain.RecordDonationRequest) (*domain.DonorProfile, error) {
	args := m.Called(ctx, donorID, req)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRequestSvc struct{ mock.Mock }

func (m *mockRequestSvc) Create(ctx context.Context, requesterID string, in domain.CreateBloodRequestInput) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requesterID, in)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) ListOpen(ctx context.Context) ([]domain.PrioritizedRequest, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]domain.PrioritizedRequest)
	return out, args.Error(1)
}

func (m *mockRequestSvc) Attempts(ctx context.Context, requestID string) ([]domain.NotificationAttempt, error) {
	args := m.Called(ctx, requestID)
	out, _ := args.Get(0).([]domain.NotificationAttempt)
	return out, args.Error(1)
}

func (m *mockRequestSvc) Matches(ctx context.Context, requestID string) ([]domain.Match, error) {
	args := m.Called(ctx, requestID)
	out, _ := args.Get(0).([]domain.Match)
	return out, args.Error(1)
}

func (m *mockRequestSvc) Redispatch(ctx context.Context, requestID string) error {
	return m.Called(ctx, requestID).Error(0)
}

func (m *mockRequestSvc) Fulfill(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Cancel(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.BloodRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Respond(ctx context.Context, requestID string, in domain.RespondInput) (*domain.DonorResponse, error) {
	args := m.Called(ctx, requestID, in)
	if r, _ := args.Get(0).(*domain.DonorResponse); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *mockRequestSvc) EscalateSilent(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// --- helpers ---

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// as attaches claims for userID/role as the auth middleware would.
func as(r *http.Request, userID, role string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID, Role: role}))
}
