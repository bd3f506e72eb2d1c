package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Headers set by the authentication gateway in front of this service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "admin"

	identityKey = "identity"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller may edit the catalog.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id, ok := identityFrom(c); ok {
			attrs = append(attrs, "user_id", id.UserID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	}
}

// authenticated rejects requests without a caller identity.
func authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		c.Set(identityKey, Identity{UserID: userID, Role: c.GetHeader(HeaderUserRole)})
		c.Next()
	}
}

// adminOnly rejects callers without the admin role. It must run after
// authenticated.
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "not authorized"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func learnerID(c *gin.Context) string {
	id, _ := identityFrom(c)
	return id.UserID
}
