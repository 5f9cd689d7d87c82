package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/pkg/geo"
	"go.uber.org/zap"
)

type donorSource interface {
	ListAvailableByBloodType(ctx context.Context, bt domain.BloodType) ([]domain.DonorProfile, error)
}

type declineSource interface {
	DeclinedDonors(ctx context.Context, requestID string) (map[string]struct{}, error)
}

// Options tunes eligibility. RadiusKm <= 0 disables the distance filter.
type Options struct {
	Mode     domain.CompatibilityMode
	RadiusKm float64
	Cooldown time.Duration
}

// Matcher selects and ranks donors for a request. It keeps no state between calls.
type Matcher struct {
	donors   donorSource
	declines declineSource
	opts     Options
	now      func() time.Time
	log      *zap.Logger
}

func NewMatcher(donors donorSource, declines declineSource, opts Options, log *zap.Logger) *Matcher {
	if opts.Mode == "" {
		opts.Mode = domain.CompatExact
	}
	return &Matcher{donors: donors, declines: declines, opts: opts, now: time.Now, log: log}
}

// Match returns eligible donors nearest first. An empty result is reported as
// ErrNoEligibleDonors.
func (m *Matcher) Match(ctx context.Context, req *domain.BloodRequest) ([]domain.Match, error) {
	var candidates []domain.DonorProfile
	for _, bt := range domain.DonorTypesFor(req.BloodType, m.opts.Mode) {
		ds, err := m.donors.ListAvailableByBloodType(ctx, bt)
		if err != nil {
			return nil, fmt.Errorf("list %s donors: %w", bt, err)
		}
		candidates = append(candidates, ds...)
	}

	declined, err := m.declines.DeclinedDonors(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load declines: %w", err)
	}

	matches := Select(req, candidates, declined, m.opts, m.now().UTC())
	m.log.Debug("matched donors",
		zap.String("request_id", req.RequestID),
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(matches)),
	)
	if len(matches) == 0 {
		return nil, fmt.Errorf("request %s: %w", req.RequestID, domain.ErrNoEligibleDonors)
	}
	return matches, nil
}

// CanServe reports whether d currently passes the eligibility rules for req.
func (m *Matcher) CanServe(req *domain.BloodRequest, d *domain.DonorProfile) bool {
	_, ok := Eligible(req, d, m.opts, m.now().UTC())
	return ok
}

// Select applies the eligibility rules to candidates and ranks the survivors.
// Duplicate donor IDs are collapsed.
func Select(req *domain.BloodRequest, candidates []domain.DonorProfile, declined map[string]struct{}, opts Options, now time.Time) []domain.Match {
	seen := make(map[string]struct{}, len(candidates))
	var out []domain.Match
	for _, d := range candidates {
		if _, dup := seen[d.DonorID]; dup {
			continue
		}
		seen[d.DonorID] = struct{}{}

		if _, ok := declined[d.DonorID]; ok {
			continue
		}
		dist, ok := Eligible(req, &d, opts, now)
		if !ok {
			continue
		}
		out = append(out, domain.Match{Donor: d, DistanceKm: dist})
	}
	Rank(out)
	return out
}

// Eligible reports whether d may be alerted for req and, if so, its distance.
func Eligible(req *domain.BloodRequest, d *domain.DonorProfile, opts Options, now time.Time) (float64, bool) {
	if !d.Available {
		return 0, false
	}
	if !domain.CanDonate(d.BloodType, req.BloodType, opts.Mode) {
		return 0, false
	}
	if d.LastDonationAt != nil && now.Sub(*d.LastDonationAt) < opts.Cooldown {
		return 0, false
	}
	if !d.HasLocation() {
		return 0, false
	}
	dist := geo.DistanceKm(req.Latitude, req.Longitude, *d.Latitude, *d.Longitude)
	if opts.RadiusKm > 0 && dist > opts.RadiusKm {
		return 0, false
	}
	return dist, true
}

// Rank orders matches by distance, then most recent availability update,
// then donor ID.
func Rank(ms []domain.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if !a.Donor.AvailabilityUpdatedAt.Equal(b.Donor.AvailabilityUpdatedAt) {
			return a.Donor.AvailabilityUpdatedAt.After(b.Donor.AvailabilityUpdatedAt)
		}
		return a.Donor.DonorID < b.Donor.DonorID
	})
}
