// Package media is the pion-backed SFU collaborator: it owns transports,
// producers and consumers keyed by identity, and relays producer RTP to
// consumer tracks. It never touches room membership state.
package media

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Error messages are part of the signaling contract and are surfaced to
// clients verbatim.
var (
	ErrRouterNotReady    = errors.New("Media router not initialized")
	ErrTransportNotFound = errors.New("Transport not found")
	ErrProducerNotFound  = errors.New("Producer not found")
)

// Engine is the media router. One transport per identity; one producer per
// identity; any number of consumers per identity.
type Engine struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	mu         sync.RWMutex
	transports map[string]*Transport
	byFid      map[domain.Fid]*Transport
	producers  map[domain.Fid]*Producer
	consumers  map[string]*Consumer
	closed     bool
}

func NewEngine(stunServers []string) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	var ice []webrtc.ICEServer
	for _, url := range stunServers {
		ice = append(ice, webrtc.ICEServer{URLs: []string{url}})
	}

	return &Engine{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		iceServers: ice,
		transports: make(map[string]*Transport),
		byFid:      make(map[domain.Fid]*Transport),
		producers:  make(map[domain.Fid]*Producer),
		consumers:  make(map[string]*Consumer),
	}, nil
}

// Close tears down every transport and rejects further calls.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	transports := make([]*Transport, 0, len(e.transports))
	for _, t := range e.transports {
		transports = append(transports, t)
	}
	producers := make([]*Producer, 0, len(e.producers))
	for _, p := range e.producers {
		producers = append(producers, p)
	}
	e.transports = make(map[string]*Transport)
	e.byFid = make(map[domain.Fid]*Transport)
	e.producers = make(map[domain.Fid]*Producer)
	e.consumers = make(map[string]*Consumer)
	e.mu.Unlock()

	for _, p := range producers {
		p.stop()
	}
	for _, t := range transports {
		t.stop()
	}
	log.Info().Str("module", "media").Msg("engine closed")
}
