package domain

import "time"

// DonorProfile is the matcher's view of a registered donor.
type DonorProfile struct {
	DonorID               string     `json:"id" dynamodbav:"donor_id"`
	UserID                string     `json:"user_id" dynamodbav:"user_id"`
	FullName              string     `json:"full_name" dynamodbav:"full_name"`
	Email                 string     `json:"email" dynamodbav:"email"`
	Phone                 *string    `json:"phone" dynamodbav:"phone"`
	PreferredChannel      Channel    `json:"preferred_channel" dynamodbav:"preferred_channel"`
	BloodType             BloodType  `json:"blood_type" dynamodbav:"blood_type"`
	Latitude              *float64   `json:"latitude" dynamodbav:"latitude"`
	Longitude             *float64   `json:"longitude" dynamodbav:"longitude"`
	Available             bool       `json:"available" dynamodbav:"available"`
	AvailabilityUpdatedAt time.Time  `json:"availability_updated_at" dynamodbav:"availability_updated_at"`
	LastDonationAt        *time.Time `json:"last_donation_at" dynamodbav:"last_donation_at"`
	DonationCount         int        `json:"donation_count" dynamodbav:"donation_count"`
	CreatedAt             time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt             time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// HasLocation reports whether both coordinates are known.
func (d *DonorProfile) HasLocation() bool {
	return d.Latitude != nil && d.Longitude != nil
}

type CreateDonorRequest struct {
	UserID           string   `json:"user_id" validate:"required"`
	FullName         string   `json:"full_name" validate:"required"`
	Email            string   `json:"email" validate:"required,email"`
	Phone            *string  `json:"phone" validate:"omitempty,e164"`
	PreferredChannel *string  `json:"preferred_channel" validate:"omitempty,oneof=sms email"`
	BloodType        string   `json:"blood_type" validate:"required,bloodtype"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,longitude"`
	Available        *bool    `json:"available"`
	LastDonationAt   *string  `json:"last_donation_at"` // expected format: YYYY-MM-DD
}

type UpdateDonorRequest struct {
	FullName         *string  `json:"full_name"`
	Email            *string  `json:"email" validate:"omitempty,email"`
	Phone            *string  `json:"phone" validate:"omitempty,e164"`
	PreferredChannel *string  `json:"preferred_channel" validate:"omitempty,oneof=sms email"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type RecordDonationRequest struct {
	DonatedAt string `json:"donated_at"` // expected format: YYYY-MM-DD, defaults to today
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}
