package bloodrequest

import (
	"sort"
	"time"

	"github.com/lifelink-api/internal/domain"
)

// Priority weights; they sum to 1 so scores stay within 0..100.
const (
	weightUrgency = 0.4
	weightWaiting = 0.3
	weightUnits   = 0.2
	weightRarity  = 0.1
)

var urgencyScore = map[domain.Urgency]float64{
	domain.UrgencyCritical: 100,
	domain.UrgencyUrgent:   70,
	domain.UrgencyRoutine:  40,
}

var rarityScore = map[domain.BloodType]float64{
	domain.BloodABNeg: 100,
	domain.BloodBNeg:  90,
	domain.BloodABPos: 80,
	domain.BloodANeg:  70,
	domain.BloodONeg:  60,
	domain.BloodBPos:  50,
	domain.BloodAPos:  40,
	domain.BloodOPos:  30,
}

func waitingScore(waited time.Duration) float64 {
	switch h := waited.Hours(); {
	case h >= 24:
		return 100
	case h >= 12:
		return 80
	case h >= 6:
		return 60
	case h >= 3:
		return 40
	case h >= 1:
		return 20
	default:
		return 0
	}
}

func unitsScore(units int) float64 {
	switch {
	case units >= 5:
		return 100
	case units == 4:
		return 80
	case units == 3:
		return 60
	case units == 2:
		return 40
	default:
		return 20
	}
}

// PriorityScore rates an open request for triage.
func PriorityScore(r *domain.BloodRequest, now time.Time) float64 {
	return urgencyScore[r.Urgency]*weightUrgency +
		waitingScore(now.Sub(r.CreatedAt))*weightWaiting +
		unitsScore(r.UnitsNeeded)*weightUnits +
		rarityScore[r.BloodType]*weightRarity
}

func PriorityLevel(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// Prioritize scores requests and sorts them highest first, oldest first on ties.
func Prioritize(reqs []domain.BloodRequest, now time.Time) []domain.PrioritizedRequest {
	out := make([]domain.PrioritizedRequest, 0, len(reqs))
	for i := range reqs {
		s := PriorityScore(&reqs[i], now)
		out = append(out, domain.PrioritizedRequest{Request: &reqs[i], Score: s, Level: PriorityLevel(s)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Request.CreatedAt.Before(out[j].Request.CreatedAt)
	})
	return out
}
