package handler

import (
	"fmt"
	"net/http"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/transport/http/middleware"
)

// callerID returns the authenticated user id, or "" when auth is disabled.
func callerID(r *http.Request) string {
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return c.UserID
	}
	return ""
}

// actingAsDonor reports whether the caller holds the donor role and so may
// only touch their own profile.
func actingAsDonor(r *http.Request) bool {
	c, ok := middleware.ClaimsFromContext(r.Context())
	return ok && c.Role == domain.RoleDonor
}

// checkOwner rejects donor-role callers acting on another user's profile.
func checkOwner(r *http.Request, d *domain.DonorProfile) error {
	if actingAsDonor(r) && d.UserID != callerID(r) {
		return fmt.Errorf("donor %s belongs to another user: %w", d.DonorID, domain.ErrForbidden)
	}
	return nil
}
