// README: Gin handler that upgrades /ws connections into hub clients.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tripsim/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The simulation front-end is served from another origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades the request and attaches the connection to the hub. The
// role comes from the ?role= query parameter and defaults to passenger.
func Handler(hub *Hub, gateway *Gateway, log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := types.Actor(ctx.DefaultQuery("role", string(types.ActorPassenger)))
		if !role.Valid() {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "role must be driver or passenger"})
			return
		}

		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := newClient(types.ID(uuid.NewString()), role, hub, conn, gateway, log)
		hub.add(client)

		go client.writePump()
		gateway.OnConnect(client)
		go client.readPump()
	}
}
