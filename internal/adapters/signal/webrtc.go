package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Media calls can take arbitrary time and fail independently of room state.
// Every handler here reports failures back to the caller and applies results
// only while the session still holds the room it held when the call started.

func (ctl *SignalWSController) handleCreateTransport(c *Client) {
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	desc, err := ctl.Media.CreateTransport(c.Fid())
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("fid", string(c.Fid())).Msg("create transport")
		ctl.sendError(c, err.Error())
		return
	}
	ctl.sendJSON(c, struct {
		Type      string                   `json:"type"`
		Transport core.TransportDescriptor `json:"transport"`
	}{
		Type:      "transport-created",
		Transport: *desc,
	})
}

func (ctl *SignalWSController) handleConnectTransport(c *Client, data []byte) {
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	type connectPayload struct {
		Type        string `json:"type"`
		TransportID string `json:"transportId"`
		core.TransportConnectParams
	}
	var p connectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad connect-transport payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if err := ctl.Media.ConnectTransport(c.Fid(), p.TransportID, p.TransportConnectParams); err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	ctl.sendJSON(c, struct {
		Type        string `json:"type"`
		TransportID string `json:"transportId"`
	}{
		Type:        "transport-connected",
		TransportID: p.TransportID,
	})
}

func (ctl *SignalWSController) handleProduce(c *Client, data []byte) {
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	type producePayload struct {
		Type          string             `json:"type"`
		TransportID   string             `json:"transportId"`
		RTPParameters core.RTPParameters `json:"rtpParameters"`
	}
	var p producePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad produce payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	producerID, err := ctl.Media.HandleProducer(c.Fid(), p.TransportID, p.RTPParameters)
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	ctl.sendJSON(c, struct {
		Type       string `json:"type"`
		ProducerID string `json:"producerId"`
	}{
		Type:       "produced",
		ProducerID: producerID,
	})
}

func (ctl *SignalWSController) handleCreateConsumer(c *Client, data []byte) {
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	type consumePayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	var p consumePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-consumer payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	desc, err := ctl.Media.CreateConsumer(c.Fid(), domain.Fid(p.Identity))
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	ctl.sendJSON(c, struct {
		Type     string                  `json:"type"`
		Consumer core.ConsumerDescriptor `json:"consumer"`
	}{
		Type:     "consumer-created",
		Consumer: *desc,
	})
}

func (ctl *SignalWSController) handleToggleMute(c *Client, data []byte) {
	roomID := c.Room()
	if !ctl.Registry.IsSpeaker(roomID, c.Fid()) {
		ctl.sendError(c, "only speakers can toggle mute")
		return
	}
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	type mutePayload struct {
		Type  string `json:"type"`
		Muted bool   `json:"muted"`
	}
	var p mutePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle-mute payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	muted, err := ctl.Media.ToggleMute(c.Fid(), p.Muted)
	if err != nil {
		// Nothing changed; the room must not hear otherwise.
		ctl.sendError(c, err.Error())
		return
	}
	// The session may have unbound or rebound while the media call was in
	// flight; a stale result must not reach the old room.
	if c.Room() != roomID {
		log.Warn().Str("module", "signal").Str("fid", string(c.Fid())).Msg("mute result dropped: session rebound")
		return
	}
	ctl.Hub.ToRoom(roomID, struct {
		Type     string     `json:"type"`
		Identity domain.Fid `json:"identity"`
		Muted    bool       `json:"muted"`
	}{
		Type:     "user-muted",
		Identity: c.Fid(),
		Muted:    muted,
	})
}

func (ctl *SignalWSController) handleStopBroadcasting(c *Client) {
	if ctl.Media == nil {
		ctl.sendError(c, "Media router not initialized")
		return
	}
	ctl.Media.StopBroadcasting(c.Fid())
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{
		Type: "broadcast-stopped",
	})
}
