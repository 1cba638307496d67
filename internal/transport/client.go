package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tilemud/server/internal/room"
	"github.com/tilemud/server/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins; auth is the bearer
	// token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection bound to a room.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	roomID  string
	agentID string
}

// inbound is the only client→server message shape the transport accepts.
type inbound struct {
	Type string `json:"type"` // "heartbeat"
}

// ServeWS upgrades GET /ws?channel=...&agentId=...&token=... into a
// realtime subscription: a full snapshot, then diffs and chat as they
// happen.
func ServeWS(hub *Hub, rooms *room.Registry, sessions *session.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		roomID := q.Get("channel")
		agentID := q.Get("agentId")
		token := q.Get("token")

		if err := sessions.Authenticate(agentID, roomID, token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		rm, ok := rooms.Get(roomID)
		if !ok {
			http.Error(w, "unknown channel", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}

		c := &Client{
			hub:     hub,
			conn:    conn,
			send:    make(chan []byte, sendBuffer),
			roomID:  roomID,
			agentID: agentID,
		}

		// Snapshot goes out before registration so the first diff the
		// client sees applies cleanly on top of it.
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		views, err := rm.Snapshot(ctx)
		cancel()
		if err != nil {
			log.Warn("ws snapshot failed", zap.String("room", roomID), zap.Error(err))
			conn.Close()
			return
		}
		snap, err := json.Marshal(Frame{Type: "snapshot", Data: views})
		if err != nil {
			conn.Close()
			return
		}
		c.send <- snap

		hub.register <- c
		go c.writePump()
		go c.readPump(sessions, log)
	}
}

// readPump drains the connection. Heartbeat frames touch the session so a
// websocket-only client does not time out of the room.
func (c *Client) readPump(sessions *session.Store, log *zap.Logger) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read error", zap.String("agent", c.agentID), zap.Error(err))
			}
			return
		}
		var msg inbound
		if json.Unmarshal(raw, &msg) == nil && msg.Type == "heartbeat" {
			sessions.Touch(c.agentID)
		}
	}
}

// writePump serializes all writes to the connection and keeps the ping
// timer running.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
