package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/haulvox/haulvox/internal/call"
	"github.com/haulvox/haulvox/pkg/telephony"
)

// linkWait bounds how long a media socket waits for its call to appear in the
// registry. The carrier can open the stream before the originate response has
// been recorded on our side.
const linkWait = 3 * time.Second

// mediaStream adapts one carrier websocket to the call orchestrator's
// outbound media interface. Gorilla connections allow a single concurrent
// writer, so all writes funnel through the mutex.
type mediaStream struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	streamSID string
}

func (m *mediaStream) SendAudio(mulaw []byte) error {
	msg, err := telephony.MediaMessage(m.streamSID, mulaw)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.WriteMessage(websocket.TextMessage, msg)
}

func (m *mediaStream) Clear() error {
	msg, err := telephony.ClearMessage(m.streamSID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.WriteMessage(websocket.TextMessage, msg)
}

// handleMedia terminates one carrier media stream. The first start event
// carries the call identifier in its custom parameters; everything on the
// socket before linkage is replayed into the call once it resolves.
func (s *Server) handleMedia(c *gin.Context) {
	if s.cfg.Calls == nil {
		c.String(http.StatusServiceUnavailable, "telephony is not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("media upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := s.log.With("socket", "media")

	var (
		cl      *call.Call
		pending []telephony.Envelope
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("media socket closed", "error", err)
			}
			return
		}
		env, err := telephony.ParseEnvelope(data)
		if err != nil {
			log.Warn("unreadable media envelope", "error", err)
			continue
		}

		if cl == nil {
			if env.Event != telephony.EventStart || env.Start == nil {
				// Carriers send "connected" preamble events before start.
				pending = append(pending, env)
				continue
			}
			cl, err = s.linkCall(env)
			if err != nil {
				log.Error("media stream linkage failed", "error", err, "stream_sid", env.Start.StreamSID)
				return
			}
			log = log.With("call_id", cl.ID())
			if env.Start.CallSID != "" {
				s.cfg.Calls.LinkCarrier(env.Start.CallSID, cl)
			}
			cl.AttachMedia(&mediaStream{conn: conn, streamSID: env.Start.StreamSID})
			for _, p := range pending {
				cl.HandleEnvelope(p)
			}
			pending = nil
		}

		cl.HandleEnvelope(env)
		if env.Event == telephony.EventStop {
			return
		}
	}
}

// linkCall resolves the start event's callId parameter against the registry,
// waiting out the originate race.
func (s *Server) linkCall(env telephony.Envelope) (*call.Call, error) {
	id := env.Start.CustomParameters["callId"]
	if id == "" {
		return nil, errors.New("start event carries no callId parameter")
	}
	select {
	case <-s.cfg.Calls.Wait(id):
	case <-time.After(linkWait):
		return nil, errors.New("no registered call for id " + id)
	}
	cl, ok := s.cfg.Calls.Lookup(id)
	if !ok {
		return nil, errors.New("no registered call for id " + id)
	}
	return cl, nil
}
