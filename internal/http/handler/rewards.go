package handler

import (
	"net/http"

	"ritual/internal/rewards"

	"github.com/go-chi/chi/v5"
)

type RewardsHandler struct {
	Svc *rewards.Service
}

func (h *RewardsHandler) Check(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Check(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RewardsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var ship rewards.ShippingInfo
	if !decode(w, r, &ship) {
		return
	}

	c, err := h.Svc.Claim(r.Context(), userID(r), chi.URLParam(r, "milestone"), ship)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *RewardsHandler) Claims(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Claims(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": out})
}

func (h *RewardsHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Achievements(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type fulfilledReq struct {
	Fulfilled *bool `json:"fulfilled"`
}

func (h *RewardsHandler) SetFulfilled(w http.ResponseWriter, r *http.Request) {
	claimID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var req fulfilledReq
	if !decode(w, r, &req) {
		return
	}
	if req.Fulfilled == nil {
		badRequest(w, "fulfilled required")
		return
	}

	c, err := h.Svc.SetFulfilled(r.Context(), claimID, *req.Fulfilled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
