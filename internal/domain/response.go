package domain

import "time"

type ResponseStatus string

const (
	ResponseAccepted ResponseStatus = "accepted"
	ResponseDeclined ResponseStatus = "declined"
)

// DonorResponse is a donor's answer to an alert. PK: request_id, SK: donor_id.
type DonorResponse struct {
	RequestID string         `json:"request_id" dynamodbav:"request_id"`
	DonorID   string         `json:"donor_id" dynamodbav:"donor_id"`
	Status    ResponseStatus `json:"status" dynamodbav:"status"`
	Notes     string         `json:"notes,omitempty" dynamodbav:"notes"`
	CreatedAt time.Time      `json:"created" dynamodbav:"created_at"`
}

type RespondInput struct {
	DonorID string `json:"donor_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=accepted declined"`
	Notes   string `json:"notes" validate:"max=1000"`
}
