package handler

import (
	"net/http"
	"strings"

	"ritual/internal/calendar"
	"ritual/internal/explore"

	"github.com/go-chi/chi/v5"
)

type ExploreHandler struct {
	Svc *explore.Service
}

// Daily serves the walk cards for ?date=YYYY-MM-DD, today by default.
func (h *ExploreHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day := h.Svc.Today()
	if s := strings.TrimSpace(r.URL.Query().Get("date")); s != "" {
		d, err := calendar.ParseDay(s)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		day = d
	}

	out, err := h.Svc.DailyActivities(r.Context(), day, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ExploreHandler) Queue(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Queue(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ExploreHandler) Save(w http.ResponseWriter, r *http.Request) {
	k, err := h.Svc.Save(r.Context(), userID(r), chi.URLParam(r, "activity"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

type completeReq struct {
	Reflection string `json:"reflection"`
}

func (h *ExploreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if !decode(w, r, &req) {
		return
	}

	k, err := h.Svc.Complete(r.Context(), userID(r), chi.URLParam(r, "activity"), req.Reflection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (h *ExploreHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Cancel(r.Context(), userID(r), chi.URLParam(r, "activity")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
