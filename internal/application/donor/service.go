package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldFullName              = "full_name"
	fieldEmail                 = "email"
	fieldPhone                 = "phone"
	fieldPreferredChannel      = "preferred_channel"
	fieldLatitude              = "latitude"
	fieldLongitude             = "longitude"
	fieldAvailable             = "available"
	fieldAvailabilityUpdatedAt = "availability_updated_at"
)

const dateLayout = "2006-01-02"

type Service interface {
	Register(ctx context.Context, req domain.CreateDonorRequest) (*domain.DonorProfile, error)
	Get(ctx context.Context, donorID string) (*domain.DonorProfile, error)
	Update(ctx context.Context, donorID string, req domain.UpdateDonorRequest) (*domain.DonorProfile, error)
	SetAvailability(ctx context.Context, donorID string, available bool) (*domain.DonorProfile, error)
	RecordDonation(ctx context.Context, donorID string, req domain.RecordDonationRequest) (*domain.DonorProfile, error)
}

type donorStore interface {
	GetByUserID(ctx context.Context, userID string) (*domain.DonorProfile, error)
	Put(ctx context.Context, d *domain.DonorProfile) error
	Get(ctx context.Context, donorID string) (*domain.DonorProfile, error)
	Update(ctx context.Context, donorID string, updates map[string]interface{}) error
	RecordDonation(ctx context.Context, donorID string, at time.Time) error
}

type service struct {
	repo donorStore
	now  func() time.Time
}

type ServiceDeps struct {
	DonorRepo donorStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.DonorRepo, now: time.Now}
}

func (s *service) Register(ctx context.Context, req domain.CreateDonorRequest) (*domain.DonorProfile, error) {
	if _, err := s.repo.GetByUserID(ctx, req.UserID); err == nil {
		return nil, fmt.Errorf("user already has a donor profile: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	bt, err := domain.ParseBloodType(req.BloodType)
	if err != nil {
		return nil, err
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, fmt.Errorf("latitude and longitude must be set together: %w", domain.ErrBadRequest)
	}
	var lastDonation *time.Time
	if req.LastDonationAt != nil && *req.LastDonationAt != "" {
		t, err := time.Parse(dateLayout, *req.LastDonationAt)
		if err != nil {
			return nil, fmt.Errorf("last_donation_at must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
		}
		lastDonation = &t
	}

	now := s.now().UTC()
	d := &domain.DonorProfile{
		DonorID:               id.New(),
		UserID:                req.UserID,
		FullName:              req.FullName,
		Email:                 strings.TrimSpace(req.Email),
		Phone:                 req.Phone,
		PreferredChannel:      preferredChannel(req.PreferredChannel, req.Phone),
		BloodType:             bt,
		Latitude:              req.Latitude,
		Longitude:             req.Longitude,
		Available:             req.Available == nil || *req.Available,
		AvailabilityUpdatedAt: now,
		LastDonationAt:        lastDonation,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// preferredChannel defaults to SMS when a phone is known, email otherwise.
func preferredChannel(pref *string, phone *string) domain.Channel {
	if pref != nil && *pref != "" {
		return domain.Channel(*pref)
	}
	if phone != nil && *phone != "" {
		return domain.ChannelSMS
	}
	return domain.ChannelEmail
}

func (s *service) Get(ctx context.Context, donorID string) (*domain.DonorProfile, error) {
	return s.repo.Get(ctx, donorID)
}

func (s *service) Update(ctx context.Context, donorID string, req domain.UpdateDonorRequest) (*domain.DonorProfile, error) {
	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates[fieldFullName] = *req.FullName
	}
	if req.Email != nil {
		updates[fieldEmail] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.PreferredChannel != nil {
		updates[fieldPreferredChannel] = *req.PreferredChannel
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, fmt.Errorf("latitude and longitude must be set together: %w", domain.ErrBadRequest)
	}
	if req.Latitude != nil {
		updates[fieldLatitude] = *req.Latitude
		updates[fieldLongitude] = *req.Longitude
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, donorID)
	}
	if err := s.repo.Update(ctx, donorID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, donorID)
}

func (s *service) SetAvailability(ctx context.Context, donorID string, available bool) (*domain.DonorProfile, error) {
	err := s.repo.Update(ctx, donorID, map[string]interface{}{
		fieldAvailable:             available,
		fieldAvailabilityUpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, donorID)
}

func (s *service) RecordDonation(ctx context.Context, donorID string, req domain.RecordDonationRequest) (*domain.DonorProfile, error) {
	at := s.now().UTC().Truncate(24 * time.Hour)
	if req.DonatedAt != "" {
		t, err := time.Parse(dateLayout, req.DonatedAt)
		if err != nil {
			return nil, fmt.Errorf("donated_at must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
		}
		if t.After(s.now().UTC()) {
			return nil, fmt.Errorf("donated_at cannot be in the future: %w", domain.ErrBadRequest)
		}
		at = t
	}
	if err := s.repo.RecordDonation(ctx, donorID, at); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, donorID)
}
