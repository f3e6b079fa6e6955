package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin is already fenced by the CORS middleware and the
		// bearer token on this route group.
		return true
	},
}

const (
	wsPollInterval = time.Second
	wsWriteTimeout = 5 * time.Second
)

// Stream pushes a fresh cache snapshot to the client whenever the
// synchronizer applied something new or its connection state moved.
func (h *LiveHandler) Stream(c *gin.Context) {
	shopID, ok := h.resolveShop(c)
	if !ok {
		return
	}

	s, err := h.manager.Get(c.Request.Context(), shopID)
	if err != nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{
		"component": "live_ws",
		"shop_id":   shopID,
	})

	done := make(chan struct{})
	go func() {
		// Drain client frames so pings are answered and closure is seen.
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	view := s.Snapshot()
	if err := writeSnapshot(conn, view); err != nil {
		return
	}
	lastSent, lastStatus := view.LastUpdate, view.Status

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			view := s.Snapshot()
			if view.LastUpdate.Equal(lastSent) && view.Status == lastStatus {
				continue
			}
			if err := writeSnapshot(conn, view); err != nil {
				log.WithError(err).Debug("client gone")
				return
			}
			lastSent, lastStatus = view.LastUpdate, view.Status
		}
	}
}

func writeSnapshot(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
