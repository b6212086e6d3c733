package server

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/haulvox/haulvox/internal/voice"
	"github.com/haulvox/haulvox/pkg/types"
)

// clientMessage is one inbound frame on the browser session socket.
type clientMessage struct {
	Type string `json:"type"`

	// Audio is a base64 PCM frame, present on "audio" messages.
	Audio string `json:"audio,omitempty"`

	// Text is present on "text" messages.
	Text string `json:"text,omitempty"`
}

// serverMessage is one outbound frame on the browser session socket.
type serverMessage struct {
	Type       string                `json:"type"`
	State      string                `json:"state,omitempty"`
	Text       string                `json:"text,omitempty"`
	Role       string                `json:"role,omitempty"`
	Timestamp  time.Time             `json:"timestamp,omitzero"`
	Item       *types.ActionItem     `json:"item,omitempty"`
	Audio      string                `json:"audio,omitempty"`
	SourceText string                `json:"source_text,omitempty"`
	Error      string                `json:"error,omitempty"`
	Summary    *types.SessionSummary `json:"summary,omitempty"`
}

// sessionWriter serializes event-goroutine writes onto one websocket.
type sessionWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *sessionWriter) send(msg serverMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// A failed write means the client is gone; the read loop will see the
	// close and tear the session down.
	_ = w.conn.WriteJSON(msg)
}

// handleSession terminates one browser conversation socket and drives a voice
// session from it.
func (s *Server) handleSession(c *gin.Context) {
	if s.cfg.NewSession == nil {
		c.String(503, "sessions are not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("session upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	w := &sessionWriter{conn: conn}
	sess, err := s.cfg.NewSession(sessionEvents(w))
	if err != nil {
		s.log.Error("session construction failed", "error", err)
		w.send(serverMessage{Type: "error", Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	log := s.log.With("socket", "session")
	defer sess.End(ctx)

	if err := sess.StartListening(ctx); err != nil {
		log.Error("session start failed", "error", err)
		w.send(serverMessage{Type: "error", Error: err.Error()})
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("session socket closed", "error", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.send(serverMessage{Type: "error", Error: "unreadable message"})
			continue
		}

		switch msg.Type {
		case "speech_start":
			sess.OnSpeechStart()
		case "audio":
			frame, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				w.send(serverMessage{Type: "error", Error: "audio payload is not base64"})
				continue
			}
			sess.FeedAudio(frame)
		case "speech_end":
			sess.OnSpeechEnd(ctx)
		case "text":
			sess.HandleUserMessage(msg.Text)
		case "interrupt":
			sess.Interrupt()
		case "end":
			// The deferred End emits the summary before the socket closes.
			return
		default:
			w.send(serverMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

// sessionEvents maps session callbacks onto the websocket protocol.
func sessionEvents(w *sessionWriter) voice.Events {
	return voice.Events{
		OnStateChange: func(st voice.State) {
			w.send(serverMessage{Type: "state", State: string(st)})
		},
		OnPartial: func(text string) {
			w.send(serverMessage{Type: "partial", Text: text})
		},
		OnTranscript: func(e types.TranscriptEntry) {
			w.send(serverMessage{Type: "transcript", Role: e.Role, Text: e.Text, Timestamp: e.Timestamp})
		},
		OnActionItem: func(item types.ActionItem) {
			w.send(serverMessage{Type: "action_item", Item: &item})
		},
		OnAudioChunk: func(buf []byte, sourceText string) {
			w.send(serverMessage{
				Type:       "audio",
				Audio:      base64.StdEncoding.EncodeToString(buf),
				SourceText: sourceText,
			})
		},
		OnError: func(err error) {
			w.send(serverMessage{Type: "error", Error: err.Error()})
		},
		OnSummary: func(sum types.SessionSummary) {
			w.send(serverMessage{Type: "summary", Summary: &sum})
		},
	}
}
