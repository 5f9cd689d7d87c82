package domain

// Role names carried in bearer token claims.
const (
	RoleAdmin    = "admin"
	RoleHospital = "hospital"
	RoleDonor    = "donor"
)
