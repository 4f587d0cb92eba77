package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/token"
)

const ctxUserKey = "authUser"

// requireAuth validates the bearer token and loads the calling user. The
// user must still exist and be active; a stale token for a deactivated
// account is rejected the same way as a forged one.
func requireAuth(verifier *token.Verifier, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		uid, err := verifier.UserID(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}
		u, err := st.User(c.Request.Context(), uid)
		if err != nil || !u.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *store.User {
	return c.MustGet(ctxUserKey).(*store.User)
}
