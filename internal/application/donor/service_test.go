package donor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockDonorStore struct{ mock.Mock }

func (m *mockDonorStore) GetByUserID(ctx context.Context, userID string) (*domain.DonorProfile, error) {
	args := m.Called(ctx, userID)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDonorStore) Put(ctx context.Context, d *domain.DonorProfile) error {
	return m.Called(ctx, d).Error(0)
}
func (m *mockDonorStore) Get(ctx context.Context, donorID string) (*domain.DonorProfile, error) {
	args := m.Called(ctx, donorID)
	if d, _ := args.Get(0).(*domain.DonorProfile); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDonorStore) Update(ctx context.Context, donorID string, updates map[string]interface{}) error {
	return m.Called(ctx, donorID, updates).Error(0)
}
func (m *mockDonorStore) RecordDonation(ctx context.Context, donorID string, at time.Time) error {
	return m.Called(ctx, donorID, at).Error(0)
}

// --- helpers ---

var fixedNow = time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

func newService(ds *mockDonorStore) Service {
	svc := NewService(ServiceDeps{DonorRepo: ds})
	svc.(*service).now = func() time.Time { return fixedNow }
	return svc
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool { return &b }

func baseReq() domain.CreateDonorRequest {
	return domain.CreateDonorRequest{
		UserID:    "user-1",
		FullName:  "Ana Souza",
		Email:     "ana@donors.test",
		Phone:     strPtr("+15550001"),
		BloodType: "o-",
		Latitude:  floatPtr(12.97),
		Longitude: floatPtr(77.59),
	}
}

// --- Register tests ---

func TestRegister_Conflict(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("GetByUserID", mock.Anything, "user-1").Return(&domain.DonorProfile{}, nil)

	_, err := newService(ds).Register(context.Background(), baseReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	ds.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRegister_LostRaceIsConflict(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("GetByUserID", mock.Anything, "user-1").Return(nil, domain.ErrNotFound)
	ds.On("Put", mock.Anything, mock.Anything).Return(fmt.Errorf("donor for user user-1 exists: %w", domain.ErrConflict))

	_, err := newService(ds).Register(context.Background(), baseReq())

	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRegister_Success(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("GetByUserID", mock.Anything, "user-1").Return(nil, domain.ErrNotFound)
	ds.On("Put", mock.Anything, mock.AnythingOfType("*domain.DonorProfile")).Return(nil)

	d, err := newService(ds).Register(context.Background(), baseReq())

	require.NoError(t, err)
	assert.NotEmpty(t, d.DonorID)
	assert.Equal(t, domain.BloodONeg, d.BloodType)
	assert.Equal(t, domain.ChannelSMS, d.PreferredChannel)
	assert.True(t, d.Available)
	assert.Equal(t, fixedNow, d.AvailabilityUpdatedAt)
	assert.Nil(t, d.LastDonationAt)
	ds.AssertExpectations(t)
}

func TestRegister_DefaultsToEmailWithoutPhone(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("GetByUserID", mock.Anything, "user-1").Return(nil, domain.ErrNotFound)
	ds.On("Put", mock.Anything, mock.Anything).Return(nil)

	req := baseReq()
	req.Phone = nil
	req.Available = boolPtr(false)
	req.LastDonationAt = strPtr("2026-01-10")
	d, err := newService(ds).Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, d.PreferredChannel)
	assert.False(t, d.Available)
	require.NotNil(t, d.LastDonationAt)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), *d.LastDonationAt)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CreateDonorRequest)
	}{
		{name: "bad blood type", mutate: func(r *domain.CreateDonorRequest) { r.BloodType = "X" }},
		{name: "half a location", mutate: func(r *domain.CreateDonorRequest) { r.Longitude = nil }},
		{name: "bad date", mutate: func(r *domain.CreateDonorRequest) { r.LastDonationAt = strPtr("10/01/2026") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &mockDonorStore{}
			ds.On("GetByUserID", mock.Anything, "user-1").Return(nil, domain.ErrNotFound)
			req := baseReq()
			tt.mutate(&req)

			_, err := newService(ds).Register(context.Background(), req)
			assert.True(t, errors.Is(err, domain.ErrBadRequest))
			ds.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		})
	}
}

// --- Update tests ---

func TestUpdate_OnlyProvidedFields(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("Update", mock.Anything, "d-1", map[string]interface{}{
		fieldPhone:     "+15550009",
		fieldLatitude:  1.5,
		fieldLongitude: 2.5,
	}).Return(nil)
	ds.On("Get", mock.Anything, "d-1").Return(&domain.DonorProfile{DonorID: "d-1"}, nil)

	_, err := newService(ds).Update(context.Background(), "d-1", domain.UpdateDonorRequest{
		Phone:     strPtr("+15550009"),
		Latitude:  floatPtr(1.5),
		Longitude: floatPtr(2.5),
	})

	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestUpdate_NoChanges(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("Get", mock.Anything, "d-1").Return(&domain.DonorProfile{DonorID: "d-1"}, nil)

	_, err := newService(ds).Update(context.Background(), "d-1", domain.UpdateDonorRequest{})

	require.NoError(t, err)
	ds.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// --- Availability / donations ---

func TestSetAvailability_StampsTime(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("Update", mock.Anything, "d-1", map[string]interface{}{
		fieldAvailable:             false,
		fieldAvailabilityUpdatedAt: fixedNow,
	}).Return(nil)
	ds.On("Get", mock.Anything, "d-1").Return(&domain.DonorProfile{DonorID: "d-1"}, nil)

	_, err := newService(ds).SetAvailability(context.Background(), "d-1", false)

	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestRecordDonation(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("RecordDonation", mock.Anything, "d-1", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)).Return(nil)
	ds.On("Get", mock.Anything, "d-1").Return(&domain.DonorProfile{DonorID: "d-1", DonationCount: 4}, nil)

	d, err := newService(ds).RecordDonation(context.Background(), "d-1", domain.RecordDonationRequest{DonatedAt: "2026-02-20"})

	require.NoError(t, err)
	assert.Equal(t, 4, d.DonationCount)
	ds.AssertExpectations(t)
}

func TestRecordDonation_DefaultsToToday(t *testing.T) {
	ds := &mockDonorStore{}
	ds.On("RecordDonation", mock.Anything, "d-1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)).Return(nil)
	ds.On("Get", mock.Anything, "d-1").Return(&domain.DonorProfile{DonorID: "d-1"}, nil)

	_, err := newService(ds).RecordDonation(context.Background(), "d-1", domain.RecordDonationRequest{})
	require.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestRecordDonation_FutureDate(t *testing.T) {
	ds := &mockDonorStore{}
	_, err := newService(ds).RecordDonation(context.Background(), "d-1", domain.RecordDonationRequest{DonatedAt: "2026-12-01"})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
