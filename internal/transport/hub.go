// Package transport is the websocket fan-out layer. The hub receives
// per-tick diffs and chat from room actors and forwards them to every
// client watching that room; slow clients are dropped, never waited for.
package transport

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/tilemud/server/internal/chat"
	"github.com/tilemud/server/internal/metrics"
	"github.com/tilemud/server/internal/room"
)

// Frame is the wire envelope for every server→client message.
type Frame struct {
	Type string `json:"type"` // "snapshot", "diff", "chat"
	Data any    `json:"data"`
}

type envelope struct {
	roomID  string
	payload []byte
}

// Hub routes frames to clients keyed by room. It satisfies room.Publisher;
// publishing never blocks because the broadcast queue drops on overflow
// (clients re-sync from a snapshot when they notice a gap).
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	byRoom map[string]map[*Client]struct{}

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewHub builds a hub. Call Run on its own goroutine.
func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 1024),
		byRoom:     make(map[string]map[*Client]struct{}),
		log:        log,
		metrics:    m,
	}
}

// Run owns the client registry until done closes. It is the only
// goroutine touching byRoom.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			for _, clients := range h.byRoom {
				for c := range clients {
					close(c.send)
				}
			}
			return
		case c := <-h.register:
			clients := h.byRoom[c.roomID]
			if clients == nil {
				clients = make(map[*Client]struct{})
				h.byRoom[c.roomID] = clients
			}
			clients[c] = struct{}{}
			if h.metrics != nil {
				h.metrics.WSClients.Inc()
			}
		case c := <-h.unregister:
			if clients := h.byRoom[c.roomID]; clients != nil {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					close(c.send)
					if len(clients) == 0 {
						delete(h.byRoom, c.roomID)
					}
					if h.metrics != nil {
						h.metrics.WSClients.Dec()
					}
				}
			}
		case env := <-h.broadcast:
			for c := range h.byRoom[env.roomID] {
				select {
				case c.send <- env.payload:
				default:
					// Client can't keep up; its pumps shut it down.
					delete(h.byRoom[env.roomID], c)
					close(c.send)
					if h.metrics != nil {
						h.metrics.WSClients.Dec()
					}
				}
			}
		}
	}
}

// PublishDiff implements room.Publisher.
func (h *Hub) PublishDiff(diff room.StateDiff) {
	h.publish(diff.RoomID, Frame{Type: "diff", Data: diff})
}

// PublishChat implements room.Publisher.
func (h *Hub) PublishChat(roomID string, msg chat.Message) {
	h.publish(roomID, Frame{Type: "chat", Data: msg})
}

func (h *Hub) publish(roomID string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.log.Error("marshal frame", zap.String("type", f.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{roomID: roomID, payload: payload}:
	default:
		h.log.Warn("broadcast queue full, dropping frame",
			zap.String("room", roomID),
			zap.String("type", f.Type),
		)
	}
}
