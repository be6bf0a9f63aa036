package httpapi

import (
	"errors"
	"net/http"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// errorStatus maps an apperr.Kind to the transport status the control plane
// surfaces for it. Every handler funnels its error return through this one
// switch rather than picking a status itself.
func errorStatus(err error) int {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.BadRequest, apperr.InvalidQuery:
		return http.StatusBadRequest
	case apperr.Conflict, apperr.GitConflict:
		return http.StatusConflict
	case apperr.GitAuthMissing:
		return http.StatusUnauthorized
	case apperr.PushFailed, apperr.EngineUnavailable:
		return http.StatusBadGateway
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	case apperr.Cancelled:
		return 499 // client closed request, nginx's convention
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func errBadRequest(msg string) error {
	return apperr.New(apperr.BadRequest, msg)
}

func errNotFound(resource string) error {
	return apperr.New(apperr.NotFound, "not found").WithResource(resource)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorBody{Error: err.Error()})
}
