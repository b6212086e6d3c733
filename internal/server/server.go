// Package server exposes haulvox over HTTP: the browser session websocket,
// the carrier media-stream websocket, call control and status routes, and the
// health and metrics endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haulvox/haulvox/internal/call"
	"github.com/haulvox/haulvox/internal/health"
	"github.com/haulvox/haulvox/internal/observe"
	"github.com/haulvox/haulvox/internal/voice"
	"github.com/haulvox/haulvox/pkg/telephony"
)

// VoiceSessionFactory builds a browser conversation session wired to the
// given event sink. The server owns the session lifecycle after that.
type VoiceSessionFactory func(events voice.Events) (*voice.Session, error)

// CallStarter launches one outbound negotiation call and registers it for
// later lookup.
type CallStarter func(ctx context.Context, req call.Request) (*call.Call, error)

// Config assembles the server's collaborators.
type Config struct {
	// NewSession creates browser sessions. Required for the /session route.
	NewSession VoiceSessionFactory

	// StartCall places outbound calls. Required for the /calls routes.
	StartCall CallStarter

	// Calls resolves call identifiers for status, webhook, and media routes.
	Calls *call.Registry

	// Health serves the liveness and readiness probes. Optional.
	Health *health.Handler

	// Metrics drives the HTTP middleware. Optional.
	Metrics *observe.Metrics
}

// Server is the haulvox HTTP surface.
type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		log: slog.Default().With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect cross-origin during development; auth
			// happens at the edge, not here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the fully routed HTTP handler, wrapped in the observability
// middleware when metrics are configured.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if s.cfg.Health != nil {
		r.GET("/healthz", gin.WrapF(s.cfg.Health.Healthz))
		r.GET("/readyz", gin.WrapF(s.cfg.Health.Readyz))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/session", s.handleSession)

	r.POST("/calls", s.handleStartCall)
	r.GET("/calls/:id", s.handleCallStatus)
	r.POST("/calls/status", s.handleStatusWebhook)
	r.GET("/calls/media", s.handleMedia)

	if s.cfg.Metrics != nil {
		return observe.Middleware(s.cfg.Metrics)(r)
	}
	return r
}

// startCallRequest is the POST /calls body.
type startCallRequest struct {
	To         string  `json:"to" binding:"required"`
	BrokerName string  `json:"broker_name"`
	LoadID     string  `json:"load_id"`
	TargetRate float64 `json:"target_rate"`
	Notes      string  `json:"notes"`
}

func (s *Server) handleStartCall(c *gin.Context) {
	if s.cfg.StartCall == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telephony is not configured"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cl, err := s.cfg.StartCall(c.Request.Context(), call.Request{
		To:         req.To,
		BrokerName: req.BrokerName,
		LoadID:     req.LoadID,
		TargetRate: req.TargetRate,
		Notes:      req.Notes,
	})
	if err != nil {
		s.log.Error("start call failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"call_id": cl.ID(),
		"state":   cl.State(),
	})
}

func (s *Server) handleCallStatus(c *gin.Context) {
	if s.cfg.Calls == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telephony is not configured"})
		return
	}
	cl, ok := s.cfg.Calls.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown call"})
		return
	}
	body := gin.H{
		"call_id": cl.ID(),
		"state":   cl.State(),
	}
	if result, has := cl.Result(); has {
		body["result"] = result
	}
	c.JSON(http.StatusOK, body)
}

// handleStatusWebhook applies a carrier lifecycle webhook to its call. The
// carrier keys the form by its own SID; unknown SIDs are acknowledged anyway
// so the carrier stops retrying after the retention window.
func (s *Server) handleStatusWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}
	upd, err := telephony.ParseStatusUpdate(c.Request.PostForm)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.Calls != nil {
		if cl, ok := s.cfg.Calls.Lookup(upd.CallSID); ok {
			cl.HandleStatus(upd)
		} else {
			s.log.Debug("status webhook for unknown call", "carrier_sid", upd.CallSID, "status", upd.Status)
		}
	}
	c.Status(http.StatusNoContent)
}
