package middleware

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/consultrag/internal/pkg/errcode"
	"github.com/xxxsen/consultrag/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	UserIDHeader     = "X-User-Id"
)

var userIDRe = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)

// UserScope reads the caller identity set by the upstream auth proxy.
// Requests without the header fall back to defaultUser.
func UserScope(defaultUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			userID = defaultUser
		}
		if !userIDRe.MatchString(userID) {
			response.Error(c, errcode.ErrInvalid, "invalid user id")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}
