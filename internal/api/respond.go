package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/onboarding"
	"github.com/kdimtricp/anilights/internal/recommend"
	"github.com/kdimtricp/anilights/internal/validation"
)

const maxBodySize = 64 << 10

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string        `json:"error"`
	Session *sessionState `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode response")
	}
}

// decodeJSON reads a size-limited JSON body into v and validates it. An empty
// body decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes and a metrics label.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, onboarding.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, onboarding.ErrSubmissionPending):
		return http.StatusConflict, "pending"
	case errors.Is(err, onboarding.ErrInvalidSelection):
		return http.StatusUnprocessableEntity, "invalid_selection"
	case errors.Is(err, onboarding.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, recommend.ErrUpstreamFailure):
		return http.StatusBadGateway, "upstream_failure"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
