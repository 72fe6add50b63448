package httpadapter

import (
	"net/http"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrMissingConfig):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
