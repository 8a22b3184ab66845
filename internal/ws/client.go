package ws

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/goroutine"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 64
	eventTimeout   = 10 * time.Second
)

// Client представляет одно подключение WebSocket.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	principal models.Principal
	send      chan []byte

	// rooms защищены hub.mu.
	rooms map[string]struct{}

	// ready закрывается после обработки подключения, доступен только циклу Run.
	ready chan struct{}

	closeOnce sync.Once
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, principal models.Principal) *Client {
	return &Client{
		conn:      conn,
		hub:       hub,
		principal: principal,
		send:      make(chan []byte, sendBuffer),
		rooms:     make(map[string]struct{}),
	}
}

// Run запускает обработку входящих и исходящих сообщений и блокируется до разрыва соединения.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGoNamed("ws.write", c.writePump)
	c.readPump(ctx)
}

// Close закрывает соединение. Повторные вызовы ничего не делают.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{
				"panic":   r,
				"user_id": c.principal.ID,
				"stack":   string(debug.Stack()),
			}).Error("ws: panic в readPump")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.touch(c.principal.ID)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).WithField("user_id", c.principal.ID).Debug("ws: соединение закрыто")
			}
			return
		}

		evCtx, cancel := context.WithTimeout(c.hub.ctx, eventTimeout)
		c.hub.handleInbound(evCtx, c, raw)
		cancel()
	}
}

// writePump единственный писатель в conn. Закрытый send означает, что хаб снял клиента.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
