// Package purchasegin mounts the purchase pipeline on a gin router.
package purchasegin

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/auth"
)

// AuthRequired verifies the bearer token and stores the caller identity
// under "auth.account_id" / "auth.email". Requests without a valid token are
// rejected before any handler runs.
func AuthRequired(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		claims, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			ginutil.Unauthorized(c, "invalid_token")
			return
		}
		c.Set("auth.account_id", claims.AccountID)
		c.Set("auth.email", claims.Email)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
