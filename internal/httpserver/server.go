package httpserver

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pkgpulse/pkgpulse/internal/handlers"
	"github.com/pkgpulse/pkgpulse/internal/middleware"
	"github.com/pkgpulse/pkgpulse/internal/recorder"
	"github.com/pkgpulse/pkgpulse/internal/store"
)

// NewRouter wires the full HTTP surface:
//
//	POST /event                                 record an event
//	GET  /package/:name/event/install/total     lifetime install count
//	GET  /package/:name/event/install/last      most recent install timestamp
//	GET  /metrics                               aggregate analytics
//	GET  /packages/:name                        per-package analytics
//	GET  /health                                storage-backed health check
//	GET  /internal/metrics                      Prometheus exposition
func NewRouter(st *store.Store, rec *recorder.Recorder, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	m := middleware.NewMetrics()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.CORS(),
		m.Middleware(),
	)

	handlers.RegisterHealthRoutes(r, st)
	handlers.RegisterEventRoutes(r, rec, st)
	handlers.RegisterMetricRoutes(r, st)

	r.GET("/internal/metrics", gin.WrapH(m.Handler()))

	return r
}
