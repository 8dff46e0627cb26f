package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	perrors "github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/observability"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch code := perrors.GetCode(err); {
	case code == perrors.ErrCodeNoValidSource, code == perrors.ErrCodeImageTooSmall:
		return http.StatusUnprocessableEntity
	case code == perrors.ErrCodeNotFound:
		return http.StatusNotFound
	case strings.HasPrefix(string(code), "INVALID_"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	code := perrors.GetCode(err)
	msg := perrors.UserMessage(err)
	switch {
	case status == http.StatusRequestEntityTooLarge:
		code, msg = perrors.ErrCodeInvalidInput, "request body too large"
	case code == "":
		code = perrors.ErrCodeInternal
	}
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = "internal error"
	}

	route := r.URL.Path
	observability.HTTP().OnError(r.Context(), r.Method, route, err)

	writeJSON(w, status, ErrorResponse{
		Code:      string(code),
		Message:   msg,
		RequestID: RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errNotFound(path string) error {
	return perrors.New(perrors.ErrCodeNotFound, "no route for %s", path)
}
