package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ritual/internal/apperr"
	"ritual/internal/auth"
	"ritual/internal/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const codeReflectionTooShort = "ReflectionTooShort"

func statusFor(ae *apperr.Error) int {
	if ae.Code == codeReflectionTooShort {
		return http.StatusUnprocessableEntity
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindRejection:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError renders expected outcomes with their code and details. Anything
// else is logged and reported as a generic failure.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := apperr.As(err); ok {
		writeJSON(w, statusFor(ae), errorBody{Error: ae.Code, Message: ae.Message, Details: ae.Details})
		return
	}

	logger.Log.WithError(err).
		WithField("request_id", chimw.GetReqID(r.Context())).
		WithField("path", r.URL.Path).
		Error("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "InternalError", Message: "server error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "BadRequest", Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "bad json")
		return false
	}
	return true
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

func userID(r *http.Request) uint64 {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}
