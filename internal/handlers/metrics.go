package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkgpulse/pkgpulse/internal/models"
	"github.com/pkgpulse/pkgpulse/internal/store"
)

// RegisterMetricRoutes registers the aggregate and per-package analytics
// endpoints. All operations are pure reads; storage errors surface as 500.
func RegisterMetricRoutes(r gin.IRoutes, st *store.Store) {
	// GET /metrics?hours=N
	//
	// The hours window bounds the totals and the top-N lists. The install
	// trend always covers the 30 most recent dates with installs, and
	// popular pairs are always all-time; neither honors the window.
	r.GET("/metrics", func(c *gin.Context) {
		ctx := c.Request.Context()

		var since *time.Time
		if raw := c.Query("hours"); raw != "" {
			hours, err := strconv.Atoi(raw)
			if err != nil || hours <= 0 {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "hours must be a positive integer"})
				return
			}
			cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
			since = &cutoff
		}

		installs, uninstalls, err := st.EventTypeCounts(ctx, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		mostInstalled, err := st.TopPackages(ctx, models.EventInstall, 10, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		mostUninstalled, err := st.TopPackages(ctx, models.EventUninstall, 5, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		trend, err := st.InstallTrend(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		pairs, err := st.PopularPairs(ctx, 10)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.Metrics{
			TotalInstalls:   installs,
			TotalUninstalls: uninstalls,
			MostInstalled:   mostInstalled,
			MostUninstalled: mostUninstalled,
			InstallTrend:    trend,
			PopularPairs:    pairs,
		})
	})

	// GET /packages/:name returns the latest metadata snapshot plus lifetime totals,
	// a 30-date daily install trend, and an hour-of-day histogram.
	r.GET("/packages/:name", func(c *gin.Context) {
		ctx := c.Request.Context()
		name := c.Param("name")

		md, err := st.LatestMetadata(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		installs, uninstalls, err := st.PackageEventCounts(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		daily, err := st.DailyInstalls(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		hourly, err := st.HourlyInstalls(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.PackageStats{
			PackageName:     name,
			Metadata:        md,
			TotalInstalls:   installs,
			TotalUninstalls: uninstalls,
			DailyInstalls:   daily,
			HourlyInstalls:  hourly,
		})
	})
}
