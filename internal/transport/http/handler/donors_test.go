package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lifelink-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validDonorBody(t *testing.T, userID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"user_id":    userID,
		"full_name":  "Ana Souza",
		"email":      "ana@donors.test",
		"blood_type": "O-",
	})
	require.NoError(t, err)
	return body
}

func TestRegisterDonor_InvalidBody(t *testing.T) {
	h := NewDonorHandler(&mockDonorSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/donors", bytes.NewBufferString("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterDonor_ValidationFailure(t *testing.T) {
	h := NewDonorHandler(&mockDonorSvc{})
	body, _ := json.Marshal(map[string]any{"user_id": "u1", "full_name": "Ana", "email": "ana@donors.test", "blood_type": "Z+"})
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/donors", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRegisterDonor_HappyPath(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Register", mock.Anything, mock.MatchedBy(func(req domain.CreateDonorRequest) bool {
		return req.UserID == "u1" && req.BloodType == "O-"
	})).Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1", BloodType: domain.BloodONeg}, nil)

	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/donors", bytes.NewReader(validDonorBody(t, "u1"))))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var got domain.DonorProfile
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "d1", got.DonorID)
	svc.AssertExpectations(t)
}

func TestRegisterDonor_DonorCannotRegisterOthers(t *testing.T) {
	h := NewDonorHandler(&mockDonorSvc{})
	r := as(httptest.NewRequest(http.MethodPost, "/v1/donors", bytes.NewReader(validDonorBody(t, "someone-else"))), "u1", domain.RoleDonor)
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRegisterDonor_Conflict(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrConflict)
	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/donors", bytes.NewReader(validDonorBody(t, "u1"))))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestGetDonor_NotFound(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.Get(rr, withChiID(httptest.NewRequest(http.MethodGet, "/v1/donors/missing", nil), "missing"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetDonor_OwnerAndStaff(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "d1").Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1"}, nil)
	h := NewDonorHandler(svc)

	for _, tc := range []struct {
		user, role string
		want       int
	}{
		{"u1", domain.RoleDonor, http.StatusOK},
		{"u2", domain.RoleDonor, http.StatusForbidden},
		{"h1", domain.RoleHospital, http.StatusOK},
		{"a1", domain.RoleAdmin, http.StatusOK},
	} {
		r := as(withChiID(httptest.NewRequest(http.MethodGet, "/v1/donors/d1", nil), "d1"), tc.user, tc.role)
		rr := httptest.NewRecorder()
		h.Get(rr, r)
		assert.Equal(t, tc.want, rr.Code, "%s/%s", tc.user, tc.role)
	}
}

func TestSetAvailability_RequiresField(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "d1").Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1"}, nil)
	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.SetAvailability(rr, withChiID(httptest.NewRequest(http.MethodPut, "/v1/donors/d1/availability", bytes.NewBufferString(`{}`)), "d1"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "SetAvailability", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetAvailability_False(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "d1").Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1"}, nil)
	svc.On("SetAvailability", mock.Anything, "d1", false).Return(&domain.DonorProfile{DonorID: "d1", Available: false}, nil)
	h := NewDonorHandler(svc)
	r := as(withChiID(httptest.NewRequest(http.MethodPut, "/v1/donors/d1/availability", bytes.NewBufferString(`{"available":false}`)), "d1"), "u1", domain.RoleDonor)
	rr := httptest.NewRecorder()
	h.SetAvailability(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestRecordDonation_EmptyBodyDefaults(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "d1").Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1"}, nil)
	svc.On("RecordDonation", mock.Anything, "d1", domain.RecordDonationRequest{}).
		Return(&domain.DonorProfile{DonorID: "d1", DonationCount: 1}, nil)
	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.RecordDonation(rr, withChiID(httptest.NewRequest(http.MethodPost, "/v1/donors/d1/donations", nil), "d1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUpdateDonor_BadRequestFromService(t *testing.T) {
	svc := &mockDonorSvc{}
	svc.On("Get", mock.Anything, "d1").Return(&domain.DonorProfile{DonorID: "d1", UserID: "u1"}, nil)
	svc.On("Update", mock.Anything, "d1", mock.Anything).Return(nil, domain.ErrBadRequest)
	h := NewDonorHandler(svc)
	rr := httptest.NewRecorder()
	h.Update(rr, withChiID(httptest.NewRequest(http.MethodPut, "/v1/donors/d1", bytes.NewBufferString(`{"latitude":10}`)), "d1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
