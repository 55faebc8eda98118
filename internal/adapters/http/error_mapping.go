package httpadapter

import (
	"net/http"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// mapErrorToHTTPStatus keeps transport concerns out of the core: the
// pipeline reports error kinds, the handler picks status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBackendUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
