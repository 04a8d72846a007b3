// README: HTTP surface; websocket upgrade plus a small REST control plane.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tripsim/internal/http/middleware"
	"tripsim/internal/modules/trip"
	"tripsim/internal/ws"
)

type ServerDeps struct {
	Trips   *trip.Service
	Hub     *ws.Hub
	Gateway *ws.Gateway
	Log     *slog.Logger
}

type Server struct {
	trips   *trip.Service
	hub     *ws.Hub
	gateway *ws.Gateway
	log     *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		trips:   deps.Trips,
		hub:     deps.Hub,
		gateway: deps.Gateway,
		log:     deps.Log,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(s.log))
	r.Use(middleware.Logging(s.log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))

	r.GET("/health", s.HandleHealth)
	r.GET("/ws", ws.Handler(s.hub, s.gateway, s.log))

	api := r.Group("/api")
	api.GET("/trip", s.HandleTripState)
	api.GET("/trip/logs", s.HandleTripLogs)
	api.POST("/trip/change", s.HandleTripOverride)
	api.POST("/emit", s.HandleEmit)
	return r
}

func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTripState exposes the passenger-shaped snapshot for debugging and
// dashboards; the websocket path is the primary consumer surface.
func (s *Server) HandleTripState(c *gin.Context) {
	c.JSON(http.StatusOK, s.trips.PassengerSnapshot())
}

func (s *Server) HandleTripLogs(c *gin.Context) {
	c.JSON(http.StatusOK, s.trips.Logs())
}

// HandleEmit relays an arbitrary named event to every connection. The event
// name and payload are caller-supplied and opaque to the core.
func (s *Server) HandleEmit(c *gin.Context) {
	var req struct {
		Event string          `json:"event" binding:"required"`
		Data  json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event name is required"})
		return
	}
	s.hub.EmitNamed(req.Event, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"event": req.Event})
}

// HandleTripOverride is the ops control path: the same permissive patch the
// send-change-trip event applies, reachable without a socket.
func (s *Server) HandleTripOverride(c *gin.Context) {
	var patch trip.ChangePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	change, err := s.trips.Override(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip change"})
		return
	}
	c.JSON(http.StatusOK, change)
}
