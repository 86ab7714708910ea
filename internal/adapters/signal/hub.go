package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Hub is the broadcast fan-out: it can address one connection (sendJSON on
// the controller), every member of a room, or all connections. Fire and
// forget; a slow consumer just drops the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ToAll emits v to every connected client.
func (h *Hub) ToAll(v any) {
	frame, err := encode(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Msg("toAll drop")
		}
	}
}

// ToRoom emits v to every client currently bound to roomID, sender included.
func (h *Hub) ToRoom(roomID domain.RoomID, v any) {
	frame, err := encode(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Room() != roomID {
			continue
		}
		if err := c.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Str("room", string(roomID)).Msg("toRoom drop")
		}
	}
}

func encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("encode")
		return nil, err
	}
	return core.Frame(b), nil
}
