package http

import (
	"github.com/lifelink-api/internal/application/bloodrequest"
	"github.com/lifelink-api/internal/application/donor"
	jwtinfra "github.com/lifelink-api/internal/infrastructure/jwt"
	"github.com/lifelink-api/internal/transport/http/handler"
	"go.uber.org/zap"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Donors        donor.Service
	BloodRequests bloodrequest.Service
	// JWTProvider is nil when no public key is configured; auth is then a pass-through.
	JWTProvider *jwtinfra.Provider
	// Checks back the readiness probe, keyed by dependency name.
	Checks map[string]handler.Check
	Logger *zap.Logger
}
