package srv

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// handleWebSocket streams a job's events: the history first, then live
// events until the job finishes or the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	logger := hlog.FromRequest(r).With().Str("job", job.ID).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	history, events, cancel := job.Subscribe()
	defer cancel()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The read loop only exists to process control frames and notice a
	// closed client.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("websocket read")
				}
				return
			}
		}
	}()

	for _, msg := range history {
		if err := writeMessage(conn, msg); err != nil {
			logger.Debug().Err(err).Msg("sending history")
			return
		}
	}
	logger.Debug().Int("messages", len(history)).Msg("history sent")

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				code, reason := closeReason(job, events)
				if code != websocket.CloseNormalClosure {
					logger.Warn().Msg("websocket subscriber fell behind, closing")
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := writeMessage(conn, msg); err != nil {
				logger.Debug().Err(err).Msg("sending event")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// closeReason picks the close frame for an ended event stream. A finished
// job closes normally with its final state; a subscriber dropped for falling
// behind is told to reconnect and replay the history.
func closeReason(job *Job, events <-chan WSMessage) (int, string) {
	if job.Dropped(events) {
		return websocket.CloseTryAgainLater, "event stream fell behind"
	}
	return websocket.CloseNormalClosure, string(job.GetState())
}
