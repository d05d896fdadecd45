package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"baf-site/internal/logger"
	"baf-site/internal/session"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxSession      = "admin_session"
)

// RequestID reuses an inbound X-Request-ID or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func AccessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start).Truncate(time.Microsecond).String(),
			"request_id", c.GetString(ctxRequestID),
		}
		switch {
		case status == statusClientClosed:
			log.Debug("request", kv...)
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Debug("request", kv...)
		}
	}
}

var errMissingToken = errors.New("missing or invalid token")

// RequireAdmin puts the caller's bearer token into a per-request session.
// Handlers read the token from that session only.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		s := session.New()
		s.Set(tok, nil)
		if !s.LoggedIn() {
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("token expired"))
			return
		}
		c.Set(ctxSession, s)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func adminSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(ctxSession); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return session.New()
}
