package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/http/middleware"
	"github.com/tbourn/go-coach-session/internal/session"
)

const streamWriteTimeout = 10 * time.Second

// StreamFrame is one WebSocket text frame sent by Stream.
//
// The first frame has type "snapshot" and carries the whole transcript. Later
// frames are "append" (one message) or "reset" (the new greeting). Every frame
// names the session it belongs to; a reset frame carries the new session id.
// A message id seen in the snapshot may repeat in an early append frame.
type StreamFrame struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id,omitempty"`
	Message   *domain.ChatMessage  `json:"message,omitempty"`
	Messages  []domain.ChatMessage `json:"messages,omitempty"`
	State     *SessionState        `json:"state,omitempty"`
}

// Stream godoc
// @ID          streamSession
// @Summary     Stream transcript events
// @Description Upgrades to a WebSocket and pushes the transcript snapshot followed by append and reset events.
// @Description The stream closes with status 1001 when the session ends (sign-out or persona switch).
// @Tags        Session
// @Param       X-User-ID  header  int  true  "Effective user id"  example(42)
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session/stream [get]
func (h *Handlers) Stream(c *gin.Context) {
	uid, _ := userID(c)
	as, err := h.sessions.Active(uid)
	if err != nil {
		sessionFail(c, err)
		return
	}
	lg := middleware.LoggerFrom(c).With().Str("session_id", as.ID).Logger()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.opts.StreamOrigins,
	})
	if err != nil {
		// Accept already wrote the HTTP error.
		lg.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	streamConns.Inc()
	defer streamConns.Dec()

	// Subscribe before the snapshot so no event falls in between.
	tr := as.Controller.Transcript()
	events, cancelSub := tr.Subscribe()
	defer cancelSub()

	// The client never sends data; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(context.WithoutCancel(c.Request.Context()))

	st := stateDTO(as.Controller.State())
	if err := writeFrame(ctx, conn, StreamFrame{
		Type:      "snapshot",
		SessionID: as.ID,
		Messages:  tr.Messages(),
		State:     &st,
	}); err != nil {
		lg.Debug().Err(err).Msg("stream snapshot")
		return
	}

	ping := time.NewTicker(h.opts.StreamPing)
	defer ping.Stop()

	sessionID := as.ID

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				lg.Debug().Err(err).Msg("stream ping")
				return
			}
		case ev, open := <-events:
			if !open {
				conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			// Reset starts a new session id on the same controller; the
			// service swaps it in before Active can be read again.
			if ev.Kind == session.EventReset {
				if cur, err := h.sessions.Active(uid); err == nil {
					sessionID = cur.ID
					lg = lg.With().Str("session_id", sessionID).Logger()
				}
			}
			if err := writeFrame(ctx, conn, eventFrame(sessionID, ev)); err != nil {
				lg.Debug().Err(err).Msg("stream write")
				return
			}
			streamEvents.WithLabelValues(string(ev.Kind)).Inc()
		}
	}
}

func eventFrame(sessionID string, ev session.Event) StreamFrame {
	m := ev.Message
	return StreamFrame{Type: string(ev.Kind), SessionID: sessionID, Message: &m}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f StreamFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
