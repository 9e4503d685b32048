package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/moogar0880/problems"

	"doc-approval-engine/internal/domain"
)

const problemContentType = "application/problem+json"

// MapHTTPStatus maps domain errors onto response codes.
func MapHTTPStatus(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsValidation(err), errors.As(err, &verrs):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidTransition(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_transition"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapHTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeProblem(w, r, status, "internal error")
		return
	}
	writeProblem(w, r, status, err.Error())
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(problemType(status)).
		WithDetail(detail)
	writeJSONType(w, status, problemContentType, problem)
}
