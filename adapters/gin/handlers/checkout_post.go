package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/checkout"
	"github.com/open-rails/purchasekit/payments"
)

func HandleCheckoutPOST(svc *checkout.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type checkoutReq struct {
		ItemID string `json:"item_id"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheckoutCreate) {
			ginutil.TooMany(c)
			return
		}
		accountID, ok := ginutil.AccountID(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		var req checkoutReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			ginutil.BadRequest(c, "invalid_item_id")
			return
		}

		redirectURL, err := svc.Initiate(c.Request.Context(), accountID, itemID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"redirect_url": redirectURL})
		case errors.Is(err, checkout.ErrItemNotFound):
			ginutil.NotFound(c, "item_not_found")
		case errors.Is(err, checkout.ErrAlreadyEntitled):
			ginutil.Conflict(c, "already_entitled")
		case errors.Is(err, checkout.ErrCheckoutPending):
			ginutil.Conflict(c, "checkout_pending")
		case errors.Is(err, payments.ErrProvider):
			ginutil.BadGateway(c, "payment_provider_unavailable")
		default:
			ginutil.ServerErr(c, "checkout_failed")
		}
	}
}
