package httpx

import (
	"errors"
	"net/http"

	"github.com/staffhive/staffhive/internal/shared"
)

// RespondError maps taxonomy errors to RFC7807 responses. Validation-shaped
// errors keep their detail; authentication and authorization denials get a
// generic body, and anything unclassified is reported as an opaque internal
// failure.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrCycle):
		Problem(w, http.StatusConflict, "Cycle Detected", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "access denied")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
