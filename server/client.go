package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket settings
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client sits between one websocket connection and the hub.
type client struct {
	srv    *Server
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// readPump applies commands from the subscriber until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.srv.hub.unregister(c)
		c.conn.Close()
		slog.Info("subscriber disconnected", "remote", c.remote)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "remote", c.remote, "error", err)
			}
			return
		}
		c.reply(c.srv.apply(cmd))
	}
}

// reply queues a direct response; it is dropped if the queue is full.
func (c *client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode reply", "error", err)
		return
	}
	c.srv.hub.sendTo(c, data)
}

// writePump forwards queued messages and keeps the connection alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				slog.Warn("failed to set write deadline", "error", err)
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("websocket write failed", "remote", c.remote, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				slog.Warn("failed to set ping write deadline", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", "remote", c.remote, "error", err)
				return
			}
		}
	}
}
