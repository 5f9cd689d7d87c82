package domain

import "time"

// Urgency is how quickly the requester needs blood.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyRoutine  Urgency = "routine"
)

// RequestStatus is the lifecycle state of a BloodRequest. Only open requests
// move; every other state is terminal.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
)

type BloodRequest struct {
	RequestID      string        `json:"id" dynamodbav:"request_id"`
	RequesterID    string        `json:"requester_id" dynamodbav:"requester_id"`
	RequesterName  string        `json:"requester_name" dynamodbav:"requester_name"`
	RequesterEmail *string       `json:"requester_email,omitempty" dynamodbav:"requester_email"`
	BloodType      BloodType     `json:"blood_type" dynamodbav:"blood_type"`
	Latitude       float64       `json:"latitude" dynamodbav:"latitude"`
	Longitude      float64       `json:"longitude" dynamodbav:"longitude"`
	Urgency        Urgency       `json:"urgency" dynamodbav:"urgency"`
	UnitsNeeded    int           `json:"units_needed" dynamodbav:"units_needed"`
	Notes          string        `json:"notes,omitempty" dynamodbav:"notes"`
	Status         RequestStatus `json:"status" dynamodbav:"status"`
	CreatedAt      time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time     `json:"updated" dynamodbav:"updated_at"`
	ExpiresAt      time.Time     `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	FulfilledAt    *time.Time    `json:"fulfilled_at,omitempty" dynamodbav:"fulfilled_at"`
}

// IsOpen reports whether the request still accepts notifications at now.
func (r *BloodRequest) IsOpen(now time.Time) bool {
	return r.Status == RequestOpen && now.Before(r.ExpiresAt)
}

type CreateBloodRequestInput struct {
	RequesterName  string   `json:"requester_name" validate:"required"`
	RequesterEmail *string  `json:"requester_email" validate:"omitempty,email"`
	BloodType      string   `json:"blood_type" validate:"required,bloodtype"`
	Latitude       *float64 `json:"latitude" validate:"required,latitude"`
	Longitude      *float64 `json:"longitude" validate:"required,longitude"`
	Urgency        string   `json:"urgency" validate:"required,oneof=critical urgent routine"`
	UnitsNeeded    int      `json:"units_needed" validate:"omitempty,min=1,max=50"`
	Notes          string   `json:"notes" validate:"max=2000"`
}

// PrioritizedRequest pairs an open request with its triage score.
type PrioritizedRequest struct {
	Request *BloodRequest `json:"request"`
	Score   float64       `json:"priority_score"`
	Level   string        `json:"priority_level"`
}
