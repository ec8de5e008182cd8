package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"realty/internal/infra/obs"
	"realty/internal/infra/security"
)

const operatorKeyHeader = "X-Operator-Key"

type keyChecker interface {
	Check(presented string) error
}

// OperatorAuth guards the admin group with the configured operator API key.
type OperatorAuth struct {
	Keys   keyChecker
	Logger *slog.Logger
}

func (m OperatorAuth) Handle(c *gin.Context) {
	if m.Keys == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "operator surface disabled"})
		return
	}
	presented := c.GetHeader(operatorKeyHeader)
	if presented == "" {
		presented = extractBearerToken(c.GetHeader("Authorization"))
	}
	err := m.Keys.Check(presented)
	switch {
	case err == nil:
		c.Next()
	case errors.Is(err, security.ErrOperatorDisabled):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "operator surface disabled"})
	default:
		if m.Logger != nil {
			m.Logger.Warn("operator request rejected", "path", c.FullPath(), "request_id", obs.RequestIDFromContext(c.Request.Context()))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
	}
}

func extractBearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
