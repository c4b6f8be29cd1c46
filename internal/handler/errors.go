package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-rooms/internal/service"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/response"
)

// Room-specific error codes.
const (
	CodeBanned          = "BANNED"
	CodeHostCannotReact = "HOST_CANNOT_REACT"
	CodeInvalidKind     = "INVALID_KIND"
	CodeNotConfigured   = "NOT_CONFIGURED"
)

// writeError maps service errors to the response envelope. Unclassified
// errors are logged and reported as "failed to <op>".
func writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthenticated(c, err.Error())
	case errors.Is(err, service.ErrBanned):
		response.Error(c, http.StatusForbidden, CodeBanned, err.Error())
	case errors.Is(err, service.ErrHostCannotReact):
		response.Error(c, http.StatusForbidden, CodeHostCannotReact, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidKind):
		response.Error(c, http.StatusBadRequest, CodeInvalidKind, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotConfigured):
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("capability token signing is not configured")
		response.Error(c, http.StatusInternalServerError, CodeNotConfigured, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str("op", op).Msg("request failed")
		response.InternalError(c, "failed to "+op)
	}
}
