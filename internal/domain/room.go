// Package domain contains entity without logic, just meta-data
package domain

type RoomID string

// MaxReactions bounds the per-room reaction ring buffer; once full,
// the oldest reaction is evicted on append.
const MaxReactions = 100

// Room is the authoritative in-memory state of one audio room.
// All mutation goes through the registry; the entity itself carries no locks.
type Room struct {
	ID      RoomID
	Name    string
	Tags    []string
	HostFid Fid

	Speakers    map[Fid]struct{}
	Listeners   map[Fid]struct{}
	RaisedHands map[Fid]struct{}

	// Reactions is an append-only ring: index 0 is the oldest retained entry.
	Reactions []Reaction

	Active   bool
	ClosedAt int64
}

// NewRoom seeds a room with the host as its sole speaker.
func NewRoom(id RoomID, host Fid, name string, tags []string) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Tags:        tags,
		HostFid:     host,
		Speakers:    map[Fid]struct{}{host: {}},
		Listeners:   make(map[Fid]struct{}),
		RaisedHands: make(map[Fid]struct{}),
		Active:      true,
	}
}

func (r *Room) IsSpeaker(fid Fid) bool {
	_, ok := r.Speakers[fid]
	return ok
}

func (r *Room) IsHost(fid Fid) bool {
	return fid == r.HostFid
}
