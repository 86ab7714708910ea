package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

const maxRoomNameLen = 64

func (ctl *SignalWSController) handleCreateRoom(c *Client, data []byte) {
	type createPayload struct {
		Type string   `json:"type"`
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-room payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Name == "" {
		ctl.sendError(c, "room name must not be empty")
		return
	}
	if len(p.Name) > maxRoomNameLen {
		p.Name = p.Name[:maxRoomNameLen]
	}

	// Rebinding releases the previous room first; the session holds at most
	// one room at a time.
	ctl.releaseBinding(c)

	snap := ctl.Registry.CreateRoom(c.Fid(), p.Name, p.Tags)
	c.bind(snap.ID)
	log.Info().Str("module", "signal").Str("fid", string(c.Fid())).Str("room", string(snap.ID)).Msg("room created")

	ctl.sendJSON(c, struct {
		Type string            `json:"type"`
		Role core.Role         `json:"role"`
		Room core.RoomSnapshot `json:"room"`
	}{
		Type: "joined-room",
		Role: core.RoleHost,
		Room: snap,
	})

	ctl.Hub.ToAll(struct {
		Type string            `json:"type"`
		Room core.RoomSnapshot `json:"room"`
	}{
		Type: "room-created",
		Room: snap,
	})
}

func (ctl *SignalWSController) handleJoinRoom(c *Client, data []byte) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	roomID := domain.RoomID(p.Room)
	role, snap, ok := ctl.Registry.JoinRoom(roomID, c.Fid())
	if !ok {
		// Missing or closed room means the client is desynced; nothing the
		// user can act on, so no error notification. The previous binding
		// stays untouched on a failed join.
		log.Debug().Str("module", "signal").Str("room", p.Room).Msg("join dropped: room absent or closed")
		return
	}

	// Release the old room only after the new one admitted us, and only when
	// actually switching; a rejoin of the bound room must not drop the
	// membership it just confirmed.
	if c.Room() != roomID {
		ctl.releaseBinding(c)
	}
	c.bind(roomID)
	log.Info().Str("module", "signal").Str("fid", string(c.Fid())).Str("room", p.Room).Str("role", string(role)).Msg("joined room")

	ctl.sendJSON(c, struct {
		Type string            `json:"type"`
		Role core.Role         `json:"role"`
		Room core.RoomSnapshot `json:"room"`
	}{
		Type: "joined-room",
		Role: role,
		Room: snap,
	})

	ctl.Hub.ToRoom(roomID, struct {
		Type     string     `json:"type"`
		Identity domain.Fid `json:"identity"`
	}{
		Type:     "user-joined",
		Identity: c.Fid(),
	})
}

func (ctl *SignalWSController) handleRaiseHand(c *Client) {
	ctl.Registry.RaiseHand(c.Room(), c.Fid())
	ctl.Hub.ToRoom(c.Room(), struct {
		Type     string     `json:"type"`
		Identity domain.Fid `json:"identity"`
	}{
		Type:     "hand-raised",
		Identity: c.Fid(),
	})
}

func (ctl *SignalWSController) handleLowerHand(c *Client) {
	ctl.Registry.LowerHand(c.Room(), c.Fid())
	ctl.Hub.ToRoom(c.Room(), struct {
		Type     string     `json:"type"`
		Identity domain.Fid `json:"identity"`
	}{
		Type:     "hand-lowered",
		Identity: c.Fid(),
	})
}

func (ctl *SignalWSController) handlePromote(c *Client, data []byte) {
	if !ctl.Registry.IsHost(c.Room(), c.Fid()) {
		ctl.sendError(c, "only the host can promote speakers")
		return
	}
	type promotePayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	var p promotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad promote payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if !ctl.Registry.AddSpeaker(c.Room(), domain.Fid(p.Identity)) {
		return
	}
	ctl.Hub.ToRoom(c.Room(), struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}{
		Type:     "user-promoted",
		Identity: p.Identity,
	})
}

func (ctl *SignalWSController) handleDemote(c *Client, data []byte) {
	if !ctl.Registry.IsHost(c.Room(), c.Fid()) {
		ctl.sendError(c, "only the host can demote speakers")
		return
	}
	type demotePayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	var p demotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad demote payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if !ctl.Registry.RemoveSpeaker(c.Room(), domain.Fid(p.Identity)) {
		return
	}
	ctl.Hub.ToRoom(c.Room(), struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}{
		Type:     "user-demoted",
		Identity: p.Identity,
	})
}

func (ctl *SignalWSController) handleReaction(c *Client, data []byte) {
	type reactionPayload struct {
		Type     string `json:"type"`
		Reaction string `json:"reaction"`
	}
	var p reactionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad reaction payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	rt := domain.ReactionType(p.Reaction)
	if !rt.Valid() {
		ctl.sendError(c, "invalid reaction type")
		return
	}

	rec, ok := ctl.Registry.AddReaction(c.Room(), c.Fid(), rt)
	if !ok {
		return
	}
	ctl.Hub.ToRoom(c.Room(), struct {
		Type     string          `json:"type"`
		Reaction domain.Reaction `json:"reaction"`
	}{
		Type:     "reaction-received",
		Reaction: rec,
	})
}

// handleDisconnect is the terminal transition: the host's room closes, other
// members are announced as gone, and media teardown is attempted regardless.
// A media failure never blocks the signaling cleanup.
func (ctl *SignalWSController) handleDisconnect(c *Client) {
	fid := c.Fid()
	roomID := c.Room()

	if fid != "" && ctl.Media != nil {
		ctl.Media.StopBroadcasting(fid)
	}

	if roomID != "" {
		if ctl.Registry.IsHost(roomID, fid) {
			if ctl.Registry.CloseRoom(roomID) {
				ctl.Hub.ToRoom(roomID, struct {
					Type string        `json:"type"`
					Room domain.RoomID `json:"room"`
				}{
					Type: "room-closed",
					Room: roomID,
				})
			}
		} else {
			ctl.Hub.ToRoom(roomID, struct {
				Type     string     `json:"type"`
				Identity domain.Fid `json:"identity"`
			}{
				Type:     "user-left",
				Identity: fid,
			})
		}
		c.bind("")
	}

	ctl.Hub.Unregister(c)
	log.Info().Str("module", "signal").Str("fid", string(fid)).Msg("disconnected")
}

// releaseBinding drops the session's current room before it binds a new one.
// A non-host member is removed and announced as gone; a rebinding host closes
// its room, exactly as a host disconnect would.
func (ctl *SignalWSController) releaseBinding(c *Client) {
	roomID := c.Room()
	if roomID == "" {
		return
	}
	fid := c.Fid()
	c.bind("")

	if ctl.Registry.IsHost(roomID, fid) {
		if ctl.Registry.CloseRoom(roomID) {
			ctl.Hub.ToRoom(roomID, struct {
				Type string        `json:"type"`
				Room domain.RoomID `json:"room"`
			}{
				Type: "room-closed",
				Room: roomID,
			})
		}
		return
	}

	ctl.Registry.RemoveParticipant(roomID, fid)
	ctl.Hub.ToRoom(roomID, struct {
		Type     string     `json:"type"`
		Identity domain.Fid `json:"identity"`
	}{
		Type:     "user-left",
		Identity: fid,
	})
}
