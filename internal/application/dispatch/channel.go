package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lifelink-api/internal/domain"
)

// Channel delivers a rendered alert to one recipient. Implementations return
// an error wrapping domain.ErrUndeliverable when a retry cannot help.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, recipient, message string) error
}

// recipientFor returns the donor's address on ch, or "" when unknown.
func recipientFor(d *domain.DonorProfile, ch domain.Channel) string {
	switch ch {
	case domain.ChannelSMS:
		if d.Phone != nil {
			return strings.TrimSpace(*d.Phone)
		}
	case domain.ChannelEmail:
		return strings.TrimSpace(d.Email)
	}
	return ""
}

// channelOrder lists the donor's preferred channel first.
func channelOrder(d *domain.DonorProfile) []domain.Channel {
	if d.PreferredChannel == domain.ChannelEmail {
		return []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}
	}
	return []domain.Channel{domain.ChannelSMS, domain.ChannelEmail}
}

// AlertMessage renders the text sent to a donor.
func AlertMessage(req *domain.BloodRequest, m domain.Match, siteURL string) string {
	units := "1 unit"
	if req.UnitsNeeded > 1 {
		units = fmt.Sprintf("%d units", req.UnitsNeeded)
	}
	msg := fmt.Sprintf("%s BLOOD REQUEST: %s needs %s blood (%s). You are %.1f km away.",
		strings.ToUpper(string(req.Urgency)), req.RequesterName, req.BloodType, units, m.DistanceKm)
	if siteURL != "" {
		msg += fmt.Sprintf(" Respond: %s/v1/blood-requests/%s/responses", strings.TrimRight(siteURL, "/"), req.RequestID)
	}
	return msg
}
