package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrNoEligibleDonors is non-fatal: the request stays open for a later retry.
	ErrNoEligibleDonors = errors.New("no eligible donors")
	// ErrRequestClosed is returned when a request is fulfilled, cancelled or expired.
	ErrRequestClosed = errors.New("request closed")
	// ErrUndeliverable marks a channel failure that a retry cannot fix.
	ErrUndeliverable = errors.New("undeliverable")
)
