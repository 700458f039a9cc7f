package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voltschool/pkg/domain"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 60 * time.Second
	eventBuffer  = 32
)

// handleEvents upgrades to a websocket and streams every domain event as a
// JSON text message. Slow clients drop events rather than block publishers.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.NotFound(w, r)
		return
	}
	send := make(chan domain.Event, eventBuffer)
	unsubscribe := h.events.Subscribe(func(e domain.Event) {
		select {
		case send <- e:
		default:
			h.logger.Warn("event stream backlog full; dropping event", "event", e.ID, "kind", e.Kind)
		}
	})
	defer unsubscribe()

	wc, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("events websocket upgrade failed", "error", err)
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := wc.NextReader(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(pingInterval)
	defer t.Stop()
	defer func() { _ = wc.Close() }()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case e := <-send:
			_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteJSON(e); err != nil {
				h.logger.Debug("events websocket write failed", "error", err)
				return
			}
		case <-t.C:
			_ = wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
