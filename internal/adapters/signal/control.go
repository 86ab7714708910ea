package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// handleSignal is the per-event entry point. Authorization tiers, in order:
// unauthenticated connections get everything but authenticate/ping silently
// dropped; room-scoped events from unbound connections are silently dropped;
// host-only and speaker-only violations are reported back as errors.
func (ctl *SignalWSController) handleSignal(c *Client, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "authenticate":
		ctl.handleAuthenticate(c, data)
		return
	case "ping":
		ctl.handlePing(c)
		return
	}

	if c.Fid() == "" {
		log.Debug().Str("module", "signal").Str("type", env.Type).Msg("dropped: unauthenticated")
		return
	}

	switch env.Type {
	case "create-room":
		ctl.handleCreateRoom(c, data)
		return
	case "join-room":
		ctl.handleJoinRoom(c, data)
		return
	}

	if c.Room() == "" {
		log.Debug().Str("module", "signal").Str("type", env.Type).Str("fid", string(c.Fid())).Msg("dropped: not in a room")
		return
	}

	switch env.Type {
	case "raise-hand":
		ctl.handleRaiseHand(c)
	case "lower-hand":
		ctl.handleLowerHand(c)
	case "promote-to-speaker":
		ctl.handlePromote(c, data)
	case "demote-speaker":
		ctl.handleDemote(c, data)
	case "send-reaction":
		ctl.handleReaction(c, data)
	case "create-transport":
		ctl.handleCreateTransport(c)
	case "connect-transport":
		ctl.handleConnectTransport(c, data)
	case "produce":
		ctl.handleProduce(c, data)
	case "create-consumer":
		ctl.handleCreateConsumer(c, data)
	case "toggle-mute":
		ctl.handleToggleMute(c, data)
	case "stop-broadcasting":
		ctl.handleStopBroadcasting(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) handlePing(c *Client) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(c, resp)
}

func (ctl *SignalWSController) sendJSON(c *Client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *Client, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": msg,
	})
}
