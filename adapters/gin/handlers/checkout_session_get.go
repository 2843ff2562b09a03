package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/entitlements"
)

// HandleCheckoutSessionGET serves the post-redirect success page: it reports
// the logged session's status so the page can poll until the webhook lands.
// Only the session's own account may read it.
func HandleCheckoutSessionGET(sessions entitlements.SessionLog, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSessionStatus) {
			ginutil.TooMany(c)
			return
		}
		accountID, ok := ginutil.AccountID(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		sid := strings.TrimSpace(c.Param("id"))
		if sid == "" {
			ginutil.BadRequest(c, "missing_session_id")
			return
		}
		s, found, err := sessions.Get(c.Request.Context(), sid)
		if err != nil {
			ginutil.ServerErr(c, "session_lookup_failed")
			return
		}
		if !found || s.AccountID != accountID {
			ginutil.NotFound(c, "session_not_found")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":      s.ID,
			"item_id": s.ItemID,
			"status":  s.Status,
		})
	}
}
