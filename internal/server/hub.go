package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domainwatch/internal/models"
)

const (
	hubWriteTimeout = 5 * time.Second
	hubPingInterval = 30 * time.Second
	hubClientBuffer = 16
)

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

// Hub streams notifications to websocket clients. It satisfies notify.Notifier
// so the poller can treat connected dashboards as one more sink.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[chan models.Notification]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.Named("feed"),
		clients: make(map[chan models.Notification]struct{}),
	}
}

// Notify broadcasts a message. Slow clients miss messages instead of blocking the poller.
func (h *Hub) Notify(_ context.Context, title, body string) error {
	msg := models.Notification{Title: title, Body: body, SentAt: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("feed client is lagging, dropping message")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan models.Notification {
	ch := make(chan models.Notification, hubClientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan models.Notification) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams notifications until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serveConnection(r.Context(), conn)
}

func (h *Hub) serveConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(hubPingInterval)
	defer ping.Stop()

	for {
		select {
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(hubWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
