package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/entitlements"
)

func HandleEntitlementGET(store entitlements.Store, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLEntitlementCheck) {
			ginutil.TooMany(c)
			return
		}
		accountID, ok := ginutil.AccountID(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		itemID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_item_id")
			return
		}
		entitled, err := store.Exists(c.Request.Context(), accountID, itemID)
		if err != nil {
			ginutil.ServerErr(c, "entitlement_check_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"entitled": entitled})
	}
}
