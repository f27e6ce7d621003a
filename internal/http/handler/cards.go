package handler

import (
	"net/http"

	"ritual/internal/cards"
)

type CardsHandler struct {
	Svc *cards.Service
}

func (h *CardsHandler) Today(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.TodaysCards(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type keepReq struct {
	Reflection string `json:"reflection"`
}

func (h *CardsHandler) Keep(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var req keepReq
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Svc.Keep(r.Context(), userID(r), itemID, req.Reflection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *CardsHandler) Collection(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Collection(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

type updateEntryReq struct {
	Reflection *string `json:"reflection"`
	Public     *bool   `json:"public"`
}

func (h *CardsHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var req updateEntryReq
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.Svc.UpdateEntry(r.Context(), userID(r), entryID, cards.EntryUpdate{
		Reflection: req.Reflection,
		Public:     req.Public,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *CardsHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteEntry(r.Context(), userID(r), entryID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CardsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Progress(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type submissionReq struct {
	UserID uint64 `json:"user_id"`
	ItemID uint64 `json:"item_id"`
}

// RecordSubmission is called by moderation once a user's own item is
// approved.
func (h *CardsHandler) RecordSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionReq
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == 0 || req.ItemID == 0 {
		badRequest(w, "user_id and item_id required")
		return
	}

	res, err := h.Svc.RecordApprovedSubmission(r.Context(), req.UserID, req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Credited {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
