package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifelink-api/internal/application/bloodrequest"
	"github.com/lifelink-api/internal/domain"
)

type donorLookup interface {
	Get(ctx context.Context, donorID string) (*domain.DonorProfile, error)
}

// BloodRequestHandler handles blood request lifecycle endpoints.
type BloodRequestHandler struct {
	svc    bloodrequest.Service
	donors donorLookup
}

func NewBloodRequestHandler(svc bloodrequest.Service, donors donorLookup) *BloodRequestHandler {
	return &BloodRequestHandler{svc: svc, donors: donors}
}

func (h *BloodRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateBloodRequestInput
	if !decodeBody(w, r, &in, false) {
		return
	}
	req, err := h.svc.Create(r.Context(), callerID(r), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListOpen returns open requests, highest priority first.
func (h *BloodRequestHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListOpen(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(reqs))
}

func (h *BloodRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *BloodRequestHandler) Matches(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Matches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(ms))
}

func (h *BloodRequestHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.Attempts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(as))
}

func (h *BloodRequestHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Redispatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "dispatch scheduled"})
}

func (h *BloodRequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Fulfill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *BloodRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Respond records a donor's accept/decline. Donor-role callers may only
// answer for their own profile.
func (h *BloodRequestHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var in domain.RespondInput
	if !decodeBody(w, r, &in, false) {
		return
	}
	if actingAsDonor(r) {
		d, err := h.donors.Get(r.Context(), in.DonorID)
		if err != nil {
			httpError(w, err)
			return
		}
		if err := checkOwner(r, d); err != nil {
			httpError(w, err)
			return
		}
	}
	resp, err := h.svc.Respond(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
