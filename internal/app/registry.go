package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Registry owns every room in the process. A single mutex serializes all
// mutations, so two events touching the same room are always applied in the
// order they were received; there is no per-room locking to race.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	order []domain.RoomID
	clock func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*domain.Room),
		clock: time.Now,
	}
}

func (r *Registry) CreateRoom(host domain.Fid, name string, tags []string) core.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := domain.RoomID(uuid.NewString())
	room := domain.NewRoom(id, host, name, tags)
	r.rooms[id] = room
	r.order = append(r.order, id)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("host", string(host)).Msg("room created")
	return snapshot(room)
}

func (r *Registry) GetRoom(id domain.RoomID) (core.RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return core.RoomSnapshot{}, false
	}
	return snapshot(room), true
}

// ListRooms returns active rooms in creation order.
func (r *Registry) ListRooms() []core.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomSnapshot, 0, len(r.rooms))
	for _, id := range r.order {
		if room, ok := r.rooms[id]; ok && room.Active {
			out = append(out, snapshot(room))
		}
	}
	return out
}

func (r *Registry) CloseRoom(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return false
	}
	room.Active = false
	room.ClosedAt = r.clock().UnixMilli()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room closed")
	return true
}

func (r *Registry) JoinRoom(id domain.RoomID, fid domain.Fid) (core.Role, core.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return "", core.RoomSnapshot{}, false
	}
	role := core.RoleListener
	switch {
	case room.IsHost(fid):
		role = core.RoleHost
	case room.IsSpeaker(fid):
		// Reconnecting speaker keeps its role.
		role = core.RoleSpeaker
	default:
		room.Listeners[fid] = struct{}{}
	}
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("fid", string(fid)).Str("role", string(role)).Msg("member joined")
	return role, snapshot(room), true
}

func (r *Registry) AddSpeaker(id domain.RoomID, fid domain.Fid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return false
	}
	if room.IsSpeaker(fid) {
		return false
	}
	room.Speakers[fid] = struct{}{}
	delete(room.Listeners, fid)
	delete(room.RaisedHands, fid)
	return true
}

func (r *Registry) RemoveSpeaker(id domain.RoomID, fid domain.Fid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return false
	}
	// The host can never be demoted.
	if room.IsHost(fid) {
		return false
	}
	if !room.IsSpeaker(fid) {
		return false
	}
	delete(room.Speakers, fid)
	room.Listeners[fid] = struct{}{}
	return true
}

func (r *Registry) RaiseHand(id domain.RoomID, fid domain.Fid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return
	}
	// Speakers never have a raised hand.
	if room.IsSpeaker(fid) {
		return
	}
	room.RaisedHands[fid] = struct{}{}
}

func (r *Registry) LowerHand(id domain.RoomID, fid domain.Fid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return
	}
	delete(room.RaisedHands, fid)
}

func (r *Registry) AddReaction(id domain.RoomID, fid domain.Fid, t domain.ReactionType) (domain.Reaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return domain.Reaction{}, false
	}
	rec := domain.Reaction{Type: t, Fid: fid, Timestamp: r.clock().UnixMilli()}
	room.Reactions = append(room.Reactions, rec)
	if len(room.Reactions) > domain.MaxReactions {
		room.Reactions = room.Reactions[len(room.Reactions)-domain.MaxReactions:]
	}
	return rec, true
}

func (r *Registry) RemoveParticipant(id domain.RoomID, fid domain.Fid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || !room.Active {
		return
	}
	if room.IsHost(fid) {
		return
	}
	delete(room.Speakers, fid)
	delete(room.Listeners, fid)
	delete(room.RaisedHands, fid)
}

func (r *Registry) IsHost(id domain.RoomID, fid domain.Fid) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return ok && room.IsHost(fid)
}

func (r *Registry) IsSpeaker(id domain.RoomID, fid domain.Fid) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return ok && room.IsSpeaker(fid)
}

// Sweep garbage-collects rooms closed longer ago than the retention window.
// Closed rooms stay retrievable by id until swept.
func (r *Registry) Sweep(retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clock().Add(-retention).UnixMilli()
	collected := 0
	keep := r.order[:0]
	for _, id := range r.order {
		room, ok := r.rooms[id]
		if !ok {
			continue
		}
		if !room.Active && room.ClosedAt <= cutoff {
			delete(r.rooms, id)
			collected++
			continue
		}
		keep = append(keep, id)
	}
	r.order = keep
	if collected > 0 {
		log.Info().Str("module", "app.registry").Int("collected", collected).Msg("swept closed rooms")
	}
	return collected
}

func snapshot(room *domain.Room) core.RoomSnapshot {
	return core.RoomSnapshot{
		ID:          room.ID,
		Name:        room.Name,
		Tags:        append([]string(nil), room.Tags...),
		HostFid:     room.HostFid,
		Speakers:    sortedFids(room.Speakers),
		Listeners:   sortedFids(room.Listeners),
		RaisedHands: sortedFids(room.RaisedHands),
		Reactions:   append([]domain.Reaction(nil), room.Reactions...),
		Active:      room.Active,
	}
}

func sortedFids(set map[domain.Fid]struct{}) []string {
	out := make([]string, 0, len(set))
	for fid := range set {
		out = append(out, string(fid))
	}
	sort.Strings(out)
	return out
}
