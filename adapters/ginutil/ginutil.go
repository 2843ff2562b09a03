// Package ginutil holds the shared plumbing for gin handlers: rate limit
// checks, JSON error replies, and caller identity accessors.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RateLimiter matches the limiter implementations in ratelimit/redis and
// ratelimit/memory.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// Rate limit bucket names, one per RPC.
const (
	RLCheckoutCreate   = "checkout_create"
	RLDownloadURL      = "download_url"
	RLEntitlementCheck = "entitlement_check"
	RLPurchasesList    = "purchases_list"
	RLSessionStatus    = "session_status"
)

// AllowNamed runs the limiter for the caller, keyed by account id when
// authenticated and client IP otherwise. A nil limiter allows everything;
// limiter errors fail open.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.ClientIP()
	if id, ok := AccountID(c); ok {
		key = id.String()
	}
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

// AccountID returns the verified caller identity set by the auth middleware.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get("auth.account_id")
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func Unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
}

func Forbidden(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code})
}

func NotFound(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": code})
}

func Conflict(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
}

func BadGateway(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": code})
}
