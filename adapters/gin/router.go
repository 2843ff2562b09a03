package purchasegin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/adapters/gin/handlers"
	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/auth"
	"github.com/open-rails/purchasekit/checkout"
	"github.com/open-rails/purchasekit/downloads"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/payments"
)

// Deps is everything the routes need. Limiter and Items are optional.
type Deps struct {
	Verifier  *auth.Verifier
	Checkout  *checkout.Service
	Downloads *downloads.Service
	Receiver  *payments.Receiver
	Store     entitlements.Store
	Sessions  entitlements.SessionLog
	Items     handlers.ItemBatchReader
	Limiter   ginutil.RateLimiter
}

// Mount registers the purchase pipeline routes on r.
//
// The webhook stays outside the auth group: the provider authenticates with
// a payload signature, not a bearer token.
func Mount(r *gin.Engine, d Deps) {
	r.POST("/webhooks/payments", handlers.HandleWebhookPOST(d.Receiver))

	authed := r.Group("/", AuthRequired(d.Verifier))
	authed.POST("/checkout", handlers.HandleCheckoutPOST(d.Checkout, d.Limiter))
	authed.GET("/checkout/sessions/:id", handlers.HandleCheckoutSessionGET(d.Sessions, d.Limiter))
	authed.GET("/items/:id/entitlement", handlers.HandleEntitlementGET(d.Store, d.Limiter))
	authed.POST("/items/:id/download", handlers.HandleDownloadPOST(d.Downloads, d.Limiter))
	authed.GET("/purchases", handlers.HandlePurchasesGET(d.Store, d.Items, d.Limiter))
}
