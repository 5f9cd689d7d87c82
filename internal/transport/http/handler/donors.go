package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifelink-api/internal/application/donor"
	"github.com/lifelink-api/internal/domain"
)

// DonorHandler handles donor registry endpoints.
type DonorHandler struct {
	svc donor.Service
}

func NewDonorHandler(svc donor.Service) *DonorHandler { return &DonorHandler{svc: svc} }

func (h *DonorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDonorRequest
	if actingAsDonor(r) {
		req.UserID = callerID(r)
	}
	if !decodeBody(w, r, &req, false) {
		return
	}
	if actingAsDonor(r) && req.UserID != callerID(r) {
		writeError(w, http.StatusForbidden, "cannot register a profile for another user")
		return
	}
	d, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DonorHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DonorHandler) Update(w http.ResponseWriter, r *http.Request) {
	d, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req domain.UpdateDonorRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	updated, err := h.svc.Update(r.Context(), d.DonorID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DonorHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	d, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req domain.SetAvailabilityRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	updated, err := h.svc.SetAvailability(r.Context(), d.DonorID, *req.Available)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DonorHandler) RecordDonation(w http.ResponseWriter, r *http.Request) {
	d, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req domain.RecordDonationRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	updated, err := h.svc.RecordDonation(r.Context(), d.DonorID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// owned loads the donor named in the URL and enforces profile ownership.
func (h *DonorHandler) owned(w http.ResponseWriter, r *http.Request) (*domain.DonorProfile, bool) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return nil, false
	}
	if err := checkOwner(r, d); err != nil {
		httpError(w, err)
		return nil, false
	}
	return d, true
}
