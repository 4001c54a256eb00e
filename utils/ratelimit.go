package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// GlobalRateLimit caps the total inbound request rate across all tokens.
// A rate of 0 disables the limiter.
func GlobalRateLimit(r float64, burst int) gin.HandlerFunc {
	if r <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status": 429,
				"code":   "sharelink.rate_limited",
				"title":  "Too many requests",
				"detail": "The service is receiving too many requests.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
