package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/downloads"
)

func HandleDownloadPOST(svc *downloads.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLDownloadURL) {
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

		grant, err := svc.Authorize(c.Request.Context(), accountID, itemID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, grant)
		case errors.Is(err, downloads.ErrNotEntitled):
			ginutil.Forbidden(c, "not_entitled")
		case errors.Is(err, downloads.ErrItemNotFound):
			ginutil.NotFound(c, "item_not_found")
		default:
			ginutil.ServerErr(c, "download_authorization_failed")
		}
	}
}
