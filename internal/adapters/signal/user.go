package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/domain"
)

func (ctl *SignalWSController) handleAuthenticate(c *Client, data []byte) {
	type authPayload struct {
		Type string `json:"type"`
		Fid  string `json:"fid"`
	}
	var p authPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad authenticate payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	fid, err := domain.ParseFid(p.Fid)
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}

	c.setFid(fid)
	log.Info().Str("module", "signal").Str("fid", string(fid)).Msg("authenticated")

	resp := struct {
		Type    string `json:"type"`
		Success bool   `json:"success"`
	}{
		Type:    "authenticated",
		Success: true,
	}
	ctl.sendJSON(c, resp)
}
