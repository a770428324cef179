// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package webview

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// frameSlack lets slightly oversized frames reach the codec, which
	// rejects them with a reply instead of a dropped connection.
	frameSlack = 1 << 10
)

// readLimit is the websocket read limit for frames bounded by limits.
func readLimit(limits ipc.Limits) int64 {
	return int64(limits.MaxFrameLen() + frameSlack)
}

type client struct {
	conn *websocket.Conn
	send chan string
	once sync.Once
	done chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan string, sendBuffer), done: make(chan struct{})}
}

// enqueue queues script without blocking. A client that cannot keep up is
// disconnected.
func (c *client) enqueue(script string) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- script:
		return true
	default:
		c.close()
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case script := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(script)); err != nil {
				logger.Debug("webview write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every text message to handle until the connection ends.
func (c *client) readPump(logger *slog.Logger, limit int64, handle func(frame string)) {
	defer c.close()

	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("webview connection lost", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(string(data))
	}
}

type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	Clients.Set(float64(len(h.clients)))
	return len(h.clients)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	Clients.Set(float64(len(h.clients)))
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) broadcast(script string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "no page connected")
	}
	delivered := 0
	for c := range h.clients {
		if c.enqueue(script) {
			delivered++
		}
	}
	if delivered == 0 {
		return cwerr.New(cwerr.CodeIPCTransportUnavailable, "no page accepted the script")
	}
	return nil
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}
