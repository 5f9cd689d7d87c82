package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lifelink-api/internal/application/bloodrequest"
	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
	jwtinfra "github.com/lifelink-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRequests embeds the interface so only the methods under test need bodies.
type stubRequests struct {
	bloodrequest.Service
	cancelled []string
}

func (s *stubRequests) Cancel(_ context.Context, id string) (*domain.BloodRequest, error) {
	s.cancelled = append(s.cancelled, id)
	return &domain.BloodRequest{RequestID: id, Status: domain.RequestCancelled}, nil
}

func newRouter(t *testing.T, p *jwtinfra.Provider, reqs bloodrequest.Service) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, &config.Config{AllowedOrigins: []string{"*"}}, &Deps{
		BloodRequests: reqs,
		JWTProvider:   p,
		Logger:        zap.NewNop(),
	})
}

type issuer struct {
	provider *jwtinfra.Provider
	key      *rsa.PrivateKey
}

// newIssuer loads a provider from a freshly written public key and keeps the
// private half to mint tokens.
func newIssuer(t *testing.T) *issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{JWTPublicKeyPath: path})
	require.NoError(t, err)
	return &issuer{provider: p, key: key}
}

func (i *issuer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtinfra.Claims{
		UserID:           userID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(i.key)
	require.NoError(t, err)
	return tok
}

func TestRouter_HealthIsPublic(t *testing.T) {
	h := newRouter(t, newIssuer(t).provider, &stubRequests{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_MetricsExposed(t *testing.T) {
	h := newRouter(t, nil, &stubRequests{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RequiresBearer(t *testing.T) {
	h := newRouter(t, newIssuer(t).provider, &stubRequests{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/blood-requests/r1/cancel", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_DonorCannotCancel(t *testing.T) {
	iss := newIssuer(t)
	reqs := &stubRequests{}
	h := newRouter(t, iss.provider, reqs)

	tok := iss.token(t, "u1", domain.RoleDonor)
	r := httptest.NewRequest(http.MethodPost, "/v1/blood-requests/r1/cancel", bytes.NewBufferString(""))
	r.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, reqs.cancelled)
}

func TestRouter_HospitalCancels(t *testing.T) {
	iss := newIssuer(t)
	reqs := &stubRequests{}
	h := newRouter(t, iss.provider, reqs)

	tok := iss.token(t, "h1", domain.RoleHospital)
	r := httptest.NewRequest(http.MethodPost, "/v1/blood-requests/r1/cancel", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"r1"}, reqs.cancelled)
}

func TestRouter_NoKeyIsPassThrough(t *testing.T) {
	reqs := &stubRequests{}
	h := newRouter(t, nil, reqs)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/blood-requests/r9/cancel", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"r9"}, reqs.cancelled)
}
