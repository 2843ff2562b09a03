package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/catalog"
	"github.com/open-rails/purchasekit/entitlements"
)

// ItemBatchReader resolves item details for purchase listings.
type ItemBatchReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Item, error)
}

// HandlePurchasesGET lists the caller's entitlements newest-first, joined
// with item title and price.
func HandlePurchasesGET(store entitlements.Store, items ItemBatchReader, rl ginutil.RateLimiter) gin.HandlerFunc {
	type purchaseView struct {
		ID         uuid.UUID `json:"id"`
		ItemID     uuid.UUID `json:"item_id"`
		Title      string    `json:"title"`
		PriceCents int64     `json:"price_cents"`
		CreatedAt  time.Time `json:"created_at"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLPurchasesList) {
			ginutil.TooMany(c)
			return
		}
		accountID, ok := ginutil.AccountID(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		ents, err := store.ListByAccount(c.Request.Context(), accountID)
		if err != nil {
			ginutil.ServerErr(c, "purchases_list_failed")
			return
		}
		ids := make([]uuid.UUID, 0, len(ents))
		for _, e := range ents {
			ids = append(ids, e.ItemID)
		}
		byID := map[uuid.UUID]catalog.Item{}
		if items != nil {
			if byID, err = items.GetByIDs(c.Request.Context(), ids); err != nil {
				ginutil.ServerErr(c, "purchases_list_failed")
				return
			}
		}
		out := make([]purchaseView, 0, len(ents))
		for _, e := range ents {
			it := byID[e.ItemID]
			out = append(out, purchaseView{
				ID:         e.ID,
				ItemID:     e.ItemID,
				Title:      it.Title,
				PriceCents: it.PriceCents,
				CreatedAt:  e.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"purchases": out})
	}
}
