package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rendezvous-chat/server/internal/config"
	"github.com/rendezvous-chat/server/internal/domain"
	"github.com/rendezvous-chat/server/internal/registry"
	"github.com/rendezvous-chat/server/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func sessionConfig(cfg *config.Config) ws.Config {
	return ws.Config{
		ReadLimit:         cfg.ReadLimit,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ClientTimeout:     cfg.ClientTimeout,
		SendBuffer:        cfg.SendBuffer,
	}
}

func userSocket(cfg *config.Config, reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("room_id"))
		name := c.Param("name")

		auth, ok := reg.Get(roomID)
		if !ok {
			if cfg.Mode != "debug" {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			// Debug convenience: a room springs into existence on first
			// reference, so clients can be pointed at any id without a
			// create call. Its admin token stays unknown, so such rooms
			// have no admins.
			auth = reg.GetOrCreate(roomID, string(roomID))
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "server").Msg("ws upgrade")
			return
		}
		sess := ws.NewSession(conn, ws.RoleUser, name, auth, sessionConfig(cfg))
		log.Info().Str("module", "server").
			Str("room", string(roomID)).
			Str("client", string(sess.ID())).
			Str("name", name).Msg("user connection")
		sess.Start()
	}
}

func adminSocket(cfg *config.Config, reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := domain.RoomID(c.Param("room_id"))
		token := c.Param("token")

		auth, ok := reg.Get(roomID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		// Refused before any session exists; a bad token never reaches
		// the room.
		if !auth.Room().Authorize(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "server").Msg("ws upgrade")
			return
		}
		sess := ws.NewSession(conn, ws.RoleAdmin, "", auth, sessionConfig(cfg))
		log.Info().Str("module", "server").
			Str("room", string(roomID)).
			Str("client", string(sess.ID())).Msg("admin connection")
		sess.Start()
	}
}
