package core

import (
	"time"

	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Role is a participant's standing within a room.
type Role string

const (
	RoleHost     Role = "host"
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

// RoomSnapshot is the read-only wire view of a room. Membership sets are
// serialized as sorted string sequences; set identity never crosses the wire.
type RoomSnapshot struct {
	ID          domain.RoomID     `json:"id"`
	Name        string            `json:"name"`
	Tags        []string          `json:"tags"`
	HostFid     domain.Fid        `json:"hostFid"`
	Speakers    []string          `json:"speakers"`
	Listeners   []string          `json:"listeners"`
	RaisedHands []string          `json:"raisedHands"`
	Reactions   []domain.Reaction `json:"reactions"`
	Active      bool              `json:"active"`
}

// RoomRegistry is the single source of truth for room state. Every mutator is
// defensive: operating on a missing or closed room is a silent no-op, never an
// error. Authorization and user-facing existence errors are the dispatcher's
// job, not the registry's.
type RoomRegistry interface {
	CreateRoom(host domain.Fid, name string, tags []string) RoomSnapshot
	GetRoom(id domain.RoomID) (RoomSnapshot, bool)
	ListRooms() []RoomSnapshot

	// CloseRoom freezes the room. Idempotent; reports whether this call
	// performed the transition.
	CloseRoom(id domain.RoomID) bool

	// JoinRoom records fid as a member, defaulting to listener unless the
	// identity is already a speaker (reconnecting speaker or host keeps its
	// role). Returns ok=false if the room is absent or closed.
	JoinRoom(id domain.RoomID, fid domain.Fid) (Role, RoomSnapshot, bool)

	// AddSpeaker and RemoveSpeaker report whether membership actually
	// changed, so callers never announce a promotion or demotion that the
	// registry refused (host demotion, non-speaker target, frozen room).
	AddSpeaker(id domain.RoomID, fid domain.Fid) bool
	RemoveSpeaker(id domain.RoomID, fid domain.Fid) bool
	RaiseHand(id domain.RoomID, fid domain.Fid)
	LowerHand(id domain.RoomID, fid domain.Fid)
	AddReaction(id domain.RoomID, fid domain.Fid, t domain.ReactionType) (domain.Reaction, bool)

	// RemoveParticipant releases a non-host member from all membership sets.
	// The host only ever leaves a room by closing it.
	RemoveParticipant(id domain.RoomID, fid domain.Fid)

	IsHost(id domain.RoomID, fid domain.Fid) bool
	IsSpeaker(id domain.RoomID, fid domain.Fid) bool

	// Sweep drops closed rooms whose ClosedAt is older than the retention
	// window and returns how many were collected.
	Sweep(retention time.Duration) int
}
