package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldDonorID        = "donor_id"
	fieldUserID         = "user_id"
	fieldBloodType      = "blood_type"
	fieldAvailable      = "available"
	fieldLastDonationAt = "last_donation_at"
	fieldDonationCount  = "donation_count"
	fieldRequestID      = "request_id"
	fieldStatus         = "status"
	fieldFulfilledAt    = "fulfilled_at"
	fieldUpdatedAt      = "updated_at"
	fieldLockKey        = "lock_key"
	fieldExpiresAt      = "expires_at"
	fieldClaimedDonorID = "claimed_donor_id"
)
