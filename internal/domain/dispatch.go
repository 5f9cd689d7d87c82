package domain

import "time"

// Reasons a dispatch run stopped contacting donors.
const (
	StopExhausted     = "exhausted"
	StopContactLimit  = "contact_limit"
	StopSatisfied     = "satisfied"
	StopRequestClosed = "request_closed"
	StopCancelled     = "cancelled"
	StopNoMatches     = "no_matches"
)

// DispatchReport summarises one Matcher+Notifier run for a request. It is
// archived, so it carries donor IDs only and no contact details.
type DispatchReport struct {
	RunID      string                `json:"run_id"`
	RequestID  string                `json:"request_id"`
	Matches    []RankedDonor         `json:"matches"`
	Attempts   []NotificationAttempt `json:"attempts"`
	StopReason string                `json:"stop_reason"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// RankedDonor is one matcher result as recorded in a report.
type RankedDonor struct {
	DonorID    string  `json:"donor_id"`
	DistanceKm float64 `json:"distance_km"`
}

// Ranked strips matches down to donor IDs and distances, keeping order.
func Ranked(ms []Match) []RankedDonor {
	out := make([]RankedDonor, len(ms))
	for i, m := range ms {
		out[i] = RankedDonor{DonorID: m.Donor.DonorID, DistanceKm: m.DistanceKm}
	}
	return out
}

// Sent counts attempts that reached the donor.
func (r *DispatchReport) Sent() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeSent {
			n++
		}
	}
	return n
}
