package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"baf-site/internal/cms"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusClientClosed is recorded when the caller disconnected before the answer was ready.
const statusClientClosed = 499

var errContentUnavailable = errors.New("content is temporarily unavailable")

// respondCMSError maps a CMS failure onto a response. Auth and not-found
// statuses pass through; anything else is a bad gateway.
func respondCMSError(c *gin.Context, err error) {
	var se *cms.StatusError
	switch {
	case errors.Is(err, cms.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden):
		RespondError(c, se.Status, "unauthorized", errors.New(se.Message()))
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		RespondError(c, http.StatusNotFound, "not_found", errors.New(se.Message()))
	case errors.As(err, &se) && se.Status == http.StatusBadRequest:
		RespondError(c, http.StatusBadRequest, "invalid", errors.New(se.Message()))
	default:
		RespondError(c, http.StatusBadGateway, "cms_error", err)
	}
}
