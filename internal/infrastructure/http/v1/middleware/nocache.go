package middleware

import "github.com/gin-gonic/gin"

// NoStore marks every response as non-cacheable. Allocated numbers must
// never be served from a cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
