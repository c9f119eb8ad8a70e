package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMsgSize = 512
	streamBuffer     = 64
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers always send Origin; other clients may omit it.
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// AlertHub fans triggered alerts out to websocket subscribers of the same
// tenant. Slow subscribers miss messages rather than block publishers.
type AlertHub struct {
	mu      sync.RWMutex
	clients map[chan []byte]string
	log     logger.Logger
}

// NewAlertHub creates an empty hub. log may be nil.
func NewAlertHub(log logger.Logger) *AlertHub {
	return &AlertHub{clients: make(map[chan []byte]string), log: log}
}

// Broadcast sends env to every subscriber of env.TenantID.
func (h *AlertHub) Broadcast(env *alerting.TriggeredEnvelope) {
	if env == nil || len(env.Alerts) == 0 {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, tenant := range h.clients {
		if tenant != env.TenantID {
			continue
		}
		select {
		case ch <- payload:
		default:
			if h.log != nil {
				h.log.Debug("alert stream subscriber lagging, message dropped",
					logger.String("tenant_id", tenant))
			}
		}
	}
}

// HandleBusMessage is an eventbus handler for the triggered topic.
func (h *AlertHub) HandleBusMessage(_ context.Context, payload []byte) {
	var env alerting.TriggeredEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		if h.log != nil {
			h.log.Warn("undecodable triggered message", logger.Error(err))
		}
		return
	}
	h.Broadcast(&env)
}

// Subscribers returns the number of connected subscribers.
func (h *AlertHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *AlertHub) subscribe(tenantID string) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, streamBuffer)
	h.mu.Lock()
	h.clients[ch] = tenantID
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
		})
	}
}

// StreamAlerts upgrades to a websocket and pushes every alert triggered
// for the request tenant as a JSON text message.
func (c *Controller) StreamAlerts(ctx echo.Context) error {
	// subscribe before the handshake completes so nothing fired right
	// after the client connects is missed
	msgs, unsubscribe := c.hub.subscribe(c.tenant(ctx))
	defer unsubscribe()

	conn, err := streamUpgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logErrorIfEnabled("Failed to upgrade alert stream", logger.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(streamMaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	// The client never sends data; reading only surfaces close frames and
	// pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case payload := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		}
	}
}
