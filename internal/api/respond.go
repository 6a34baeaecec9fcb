package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/leaderboard"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/view"
)

var (
	errMissingUser = fmt.Errorf("%w: set the %s header", common.ErrMissingUser, HeaderUserID)
	errBadRequest  = errors.New("bad request")
)

type fieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Fields []fieldProblem `json:"fields,omitempty"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, importer.ErrTooManyRows), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, record.ErrValidation),
		errors.Is(err, importer.ErrPayloadParse),
		errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, view.ErrUnknownSortKey),
		errors.Is(err, view.ErrUnknownSortOrder),
		errors.Is(err, view.ErrUnknownStatus),
		errors.Is(err, view.ErrInvalidDateRange),
		errors.Is(err, leaderboard.ErrUnknownMeasure),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verrs record.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = record.ErrValidation.Error()
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fieldProblem{Field: fe.Field, Message: fe.Message})
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"user_id", userFrom(r.Context()),
			"error", err)
		resp.Error = "internal error"
	}

	s.writeJSON(w, status, resp)
}
