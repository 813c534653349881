// Package server wires the HTTP surface: room creation and the websocket
// endpoints that hand connections to the room core.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rendezvous-chat/server/internal/config"
	"github.com/rendezvous-chat/server/internal/registry"
)

func New(cfg *config.Config, reg *registry.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors())

	api := r.Group("/api")
	api.POST("/rooms", createRoom(reg))
	api.GET("/rooms", listRooms(reg))

	sock := r.Group("/ws")
	sock.GET("/:room_id/user/:name", userSocket(cfg, reg))
	sock.GET("/:room_id/admin/:token", adminSocket(cfg, reg))

	log.Info().Str("module", "server").Msg("router setup")
	return r
}

// The signaling clients are browser apps served from elsewhere; keep the
// surface permissive.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type roomAttributes struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" binding:"required"`
	AdminToken string `json:"admin_token,omitempty"`
}

type roomData struct {
	Attributes roomAttributes `json:"attributes" binding:"required"`
}

func createRoom(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body roomData
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room name is required"})
			return
		}
		auth := reg.Create(body.Attributes.Name)
		rm := auth.Room()
		// The admin token is shown exactly once, here.
		c.JSON(http.StatusOK, roomData{Attributes: roomAttributes{
			ID:         string(rm.ID),
			Name:       rm.Name,
			AdminToken: rm.AdminToken,
		}})
	}
}

func listRooms(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": reg.List()})
	}
}
