package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/purchasekit/payments"
)

// maxWebhookBody caps how much of a push we read. Provider events are small;
// anything larger is hostile.
const maxWebhookBody = 1 << 20

// HandleWebhookPOST consumes provider payment pushes. It is unauthenticated
// at the transport level; authenticity comes from the signature header, and
// the receiver checks it before touching the body. Non-2xx replies make the
// provider redeliver, so transient store failures must map to 5xx and
// permanent rejects to 4xx.
func HandleWebhookPOST(rcv *payments.Receiver) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		outcome, err := rcv.Receive(c.Request.Context(), body, c.GetHeader("Signature"))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome.String()})
		case errors.Is(err, payments.ErrBadSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		case errors.Is(err, payments.ErrMalformedEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_event"})
		case errors.Is(err, payments.ErrMissingMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_metadata"})
		default:
			// Transient store failure: 5xx invites redelivery, which the
			// idempotent insert makes safe.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "fulfillment_failed"})
		}
	}
}
