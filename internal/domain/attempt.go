package domain

import "time"

// Channel names a notification transport.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Outcome is the final result of contacting one donor.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// NotificationAttempt records one donor contacted for one request. Tries is 2
// when the first send failed transiently and was retried. Immutable once written.
type NotificationAttempt struct {
	RequestID  string    `json:"request_id" dynamodbav:"request_id"`
	AttemptID  string    `json:"id" dynamodbav:"attempt_id"`
	DonorID    string    `json:"donor_id" dynamodbav:"donor_id"`
	Channel    Channel   `json:"channel" dynamodbav:"channel"`
	Recipient  string    `json:"-" dynamodbav:"recipient"`
	Tries      int       `json:"tries" dynamodbav:"tries"`
	Outcome    Outcome   `json:"outcome" dynamodbav:"outcome"`
	Error      string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	DistanceKm float64   `json:"distance_km" dynamodbav:"distance_km"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

// Match is a ranked matcher result.
type Match struct {
	Donor      DonorProfile `json:"donor"`
	DistanceKm float64      `json:"distance_km"`
}
