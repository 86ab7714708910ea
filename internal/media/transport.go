package media

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Transport bundles the ORTC triple (gatherer, ICE, DTLS) for one identity.
type Transport struct {
	ID  string
	Fid domain.Fid

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
}

func (t *Transport) stop() {
	if err := t.dtls.Stop(); err != nil {
		log.Error().Err(err).Str("module", "media").Str("transport", t.ID).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Error().Err(err).Str("module", "media").Str("transport", t.ID).Msg("ice stop")
	}
}

// CreateTransport allocates the server-side transport for an identity and
// returns its gathered parameters. A prior transport for the same identity is
// replaced; its producer and consumers are released first.
func (e *Engine) CreateTransport(fid domain.Fid) (*core.TransportDescriptor, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrRouterNotReady
	}

	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.iceServers})
	if err != nil {
		return nil, err
	}

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, err
	}
	<-gatherDone

	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, err
	}

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, err
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, err
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		ID:       uuid.NewString(),
		Fid:      fid,
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
	}

	e.mu.Lock()
	old := e.byFid[fid]
	e.transports[t.ID] = t
	e.byFid[fid] = t
	e.mu.Unlock()

	if old != nil {
		e.StopBroadcasting(fid)
		e.mu.Lock()
		delete(e.transports, old.ID)
		e.mu.Unlock()
		old.stop()
	}

	log.Info().Str("module", "media").Str("fid", string(fid)).Str("transport", t.ID).Msg("transport created")

	return &core.TransportDescriptor{
		ID:             t.ID,
		ICEParameters:  iceParams,
		ICECandidates:  candidates,
		DTLSParameters: dtlsParams,
	}, nil
}

// ConnectTransport starts ICE and DTLS with the client-signaled parameters.
func (e *Engine) ConnectTransport(fid domain.Fid, transportID string, params core.TransportConnectParams) error {
	e.mu.RLock()
	t, ok := e.transports[transportID]
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrRouterNotReady
	}
	if !ok || t.Fid != fid {
		return ErrTransportNotFound
	}

	if err := t.ice.SetRemoteCandidates(params.ICECandidates); err != nil {
		return err
	}
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, params.ICEParameters, &role); err != nil {
		return err
	}
	if err := t.dtls.Start(params.DTLSParameters); err != nil {
		return err
	}
	log.Info().Str("module", "media").Str("fid", string(fid)).Str("transport", transportID).Msg("transport connected")
	return nil
}
