package domain

import "time"

// Routing keys published on the events exchange.
const (
	EventRequestCreated    = "blood_request.created"
	EventRequestRedispatch = "blood_request.redispatch"
	EventRequestDispatched = "blood_request.dispatched"
	EventRequestUnmatched  = "blood_request.unmatched"
	EventRequestFulfilled  = "blood_request.fulfilled"
	EventRequestClosed     = "blood_request.closed"
)

// RequestEvent is the payload for every blood_request.* routing key.
type RequestEvent struct {
	RequestID  string        `json:"request_id"`
	Status     RequestStatus `json:"status,omitempty"`
	BloodType  BloodType     `json:"blood_type,omitempty"`
	Urgency    Urgency       `json:"urgency,omitempty"`
	Matched    int           `json:"matched,omitempty"`
	Sent       int           `json:"sent,omitempty"`
	StopReason string        `json:"stop_reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
