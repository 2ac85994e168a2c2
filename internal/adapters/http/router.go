package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/adapters/signal"
	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ctl := &Controller{Coord: coord}
	gw := signal.NewGateway(coord, cfg.ReadLimit, cfg.PingPeriod)

	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.JWTSecret))

	api.POST("/workspaces/:workspace/sessions", ctl.CreateSession)
	api.GET("/workspaces/:workspace/sessions", ctl.ListSessions)
	api.GET("/sessions/:id", ctl.GetSession)
	api.DELETE("/sessions/:id", ctl.DeleteSession)

	api.GET("/ws/sessions/:id", func(c *gin.Context) {
		gw.Handle(ctx, c, principal(c).User)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
