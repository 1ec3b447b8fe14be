package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkgpulse/pkgpulse/internal/store"
)

// RegisterHealthRoutes registers the storage-backed health check. Unlike a
// pure liveness probe, this pings the database: an unreachable store means
// the durability guarantee can't be met, which is a 503.
func RegisterHealthRoutes(r gin.IRoutes, st *store.Store) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Service unhealthy: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
	})
}
