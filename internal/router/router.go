package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-bot/internal/handler"
)

const PathMetrics = "/metrics"

type Deps struct {
	Reports  *handler.ReportHandler
	Staff    *handler.StaffHandler
	DB       handler.Pinger
	Registry *prometheus.Registry
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, handler.Ready(d.DB))
	if d.Registry != nil {
		r.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/reports", d.Reports.List)
		v1.GET("/reports/:id", d.Reports.Get)
		v1.GET("/staff", d.Staff.List)
	}

	return r
}
