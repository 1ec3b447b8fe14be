package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkgpulse/pkgpulse/internal/models"
	"github.com/pkgpulse/pkgpulse/internal/recorder"
	"github.com/pkgpulse/pkgpulse/internal/store"
)

// RegisterEventRoutes registers the ingestion endpoint and the per-package
// install lookups.
//
// POST /event
//   - Validation failures (empty package, bad type, future timestamp) → 422,
//     before any side effect
//   - Metadata fetch failures are absorbed upstream; the event still lands
//   - Storage failures → 500
func RegisterEventRoutes(r gin.IRoutes, rec *recorder.Recorder, st *store.Store) {
	r.POST("/event", func(c *gin.Context) {
		var req models.EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid JSON payload"})
			return
		}

		if err := rec.Record(c.Request.Context(), req); err != nil {
			var ve *recorder.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": ve.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to record event: " + err.Error()})
			return
		}

		c.JSON(http.StatusCreated, models.EventResponse{
			Status:  "success",
			Message: "Event recorded successfully",
		})
	})

	// Bare integer body.
	r.GET("/package/:name/event/install/total", func(c *gin.Context) {
		count, err := st.InstallTotal(c.Request.Context(), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, count)
	})

	// RFC3339 string body, or null when the package was never installed.
	r.GET("/package/:name/event/install/last", func(c *gin.Context) {
		last, err := st.LastInstall(c.Request.Context(), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		if last == nil {
			c.JSON(http.StatusOK, nil)
			return
		}
		c.JSON(http.StatusOK, last.Format(time.RFC3339))
	})
}
