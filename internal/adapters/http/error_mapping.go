package httpadapter

import (
	"net/http"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrAgentNotFound),
		domain.IsKind(err, domain.ErrInvocation),
		domain.IsKind(err, domain.ErrMalformedResponse),
		domain.IsKind(err, domain.ErrEmptyAnswer):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
