// Package server exposes the chart over HTTP: the viewer websocket plus
// health and view probes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/gateway"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/hub"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
)

// ChartState is what the probes report on.
type ChartState interface {
	Ready() bool
	Committed() int
}

type Deps struct {
	Hub          *hub.Hub
	Viewer       *perspective.Viewer
	Chart        ChartState
	ValidTickers map[string]bool
	Logger       *zap.Logger
}

// NewRouter builds the gin engine serving /ws, /healthz and /api/view.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", func(c *gin.Context) {
		conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
		if err != nil {
			d.Logger.Debug("Websocket upgrade failed", zap.Error(err))
			return
		}
		gateway.NewViewerConn(conn, d.Hub, d.Logger, d.ValidTickers).Start()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"chart_ready": d.Chart.Ready(),
		})
	})

	r.GET("/api/view", func(c *gin.Context) {
		if !d.Chart.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart not initialised"})
			return
		}
		view := d.Viewer.View()
		c.JSON(http.StatusOK, gin.H{
			"schema":     view.Schema,
			"attributes": view.Attributes,
			"rows":       view.Rows,
			"committed":  d.Chart.Committed(),
			"viewers":    d.Hub.Viewers(),
		})
	})

	return r
}
