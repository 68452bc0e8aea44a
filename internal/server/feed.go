package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"jarconsole/internal/models"
)

const feedWriteTimeout = 5 * time.Second

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// handleServicesWS streams the service list: the current rows on connect,
// then every replacement.
func (s *Server) handleServicesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveFeed(conn)
}

func (s *Server) serveFeed(conn *websocket.Conn) {
	defer conn.Close()

	updates, unsubscribe := s.poller.List().Subscribe()
	defer unsubscribe()

	if err := writeFeedPayload(conn, s.poller.List().Items()); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case items, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFeedPayload(conn, items); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeFeedPayload(conn *websocket.Conn, items []models.ServiceItem) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return conn.WriteJSON(models.Envelope[[]models.ServiceItem]{
		Code: models.CodeSuccess,
		Data: &items,
	})
}
