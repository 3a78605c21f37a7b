// Package http exposes the management surface: a read-only snapshot of the
// session table and a forced kick. These two endpoints are the only external
// entry points into core state.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/averel/salon/internal/config"
	"github.com/averel/salon/internal/core"
	"github.com/averel/salon/internal/transport/ws"
)

func SetupRouter(ctx context.Context, cfg *config.Config, reg *core.Registry, wsHandler *ws.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": reg.Snapshot()})
	})

	api.POST("/sessions/:pseudonym/kick", func(c *gin.Context) {
		pseudonym := c.Param("pseudonym")
		if !reg.Kick(pseudonym) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown pseudonym"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("pseudonym", pseudonym).Msg("kick requested")
		c.JSON(http.StatusOK, gin.H{"kicked": pseudonym})
	})

	if wsHandler != nil {
		r.GET("/ws", func(c *gin.Context) {
			wsHandler.Handle(ctx, c)
		})
	}

	return r
}
