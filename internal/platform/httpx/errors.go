// Package httpx provides HTTP response utilities following RFC7807 problem
// details.
package httpx

import (
	"net/http"

	"github.com/meridian-assist/meridian/internal/shared"
)

// statusForKind maps taxonomy kinds to HTTP status codes.
func statusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidStatus, shared.KindAlreadyPaid:
		return http.StatusConflict
	case shared.KindNoEmail:
		return http.StatusUnprocessableEntity
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindUploadError, shared.KindSendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps a domain error to an RFC7807 response. Only the taxonomy
// kind and a caller-safe message cross the boundary.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := statusForKind(kind)
	detail := shared.UserSafeMessage(err)
	if status == http.StatusInternalServerError {
		detail = ""
	}
	Problem(w, status, string(kind), detail)
}
