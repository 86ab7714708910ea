package media

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// Producer is one identity's inbound audio: an RTPReceiver plus the relay
// fanning its packets out to consumers.
type Producer struct {
	ID       string
	Fid      domain.Fid
	receiver *webrtc.RTPReceiver
	relay    *relay
	paused   atomic.Bool
}

func (p *Producer) stop() {
	p.relay.stop()
	if err := p.receiver.Stop(); err != nil {
		log.Error().Err(err).Str("module", "media").Str("producer", p.ID).Msg("receiver stop")
	}
}

// Consumer is one subscriber leg: an RTPSender owned by the consuming
// identity, fed from one producer's relay.
type Consumer struct {
	ID          string
	Owner       domain.Fid
	ProducerFid domain.Fid
	sender      *webrtc.RTPSender
}

// HandleProducer attaches an inbound audio track to the identity's transport
// and starts relaying it. A previous producer for the same identity is
// replaced.
func (e *Engine) HandleProducer(fid domain.Fid, transportID string, params core.RTPParameters) (string, error) {
	e.mu.RLock()
	t, ok := e.transports[transportID]
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return "", ErrRouterNotReady
	}
	if !ok || t.Fid != fid {
		return "", ErrTransportNotFound
	}

	receiver, err := e.api.NewRTPReceiver(webrtc.RTPCodecTypeAudio, t.dtls)
	if err != nil {
		return "", err
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC:        webrtc.SSRC(params.SSRC),
				PayloadType: webrtc.PayloadType(params.PayloadType),
			},
		}},
	})
	if err != nil {
		return "", err
	}

	p := &Producer{
		ID:       uuid.NewString(),
		Fid:      fid,
		receiver: receiver,
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.relay = newRelay(receiver.Track(), &p.paused, cancel)

	e.mu.Lock()
	old := e.producers[fid]
	e.producers[fid] = p
	e.mu.Unlock()
	if old != nil {
		old.stop()
	}

	logger := log.With().
		Str("module", "media").
		Str("fid", string(fid)).
		Str("producer", p.ID).
		Logger()
	logger.Info().Msg("producer started")
	go p.relay.loop(ctx, &logger)

	return p.ID, nil
}

// CreateConsumer subscribes consumerFid to producerFid's audio over the
// consumer's own transport.
func (e *Engine) CreateConsumer(consumerFid, producerFid domain.Fid) (*core.ConsumerDescriptor, error) {
	e.mu.RLock()
	p, hasProducer := e.producers[producerFid]
	t, hasTransport := e.byFid[consumerFid]
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrRouterNotReady
	}
	if !hasProducer {
		return nil, ErrProducerNotFound
	}
	if !hasTransport {
		return nil, ErrTransportNotFound
	}

	localTrack, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", string(producerFid))
	if err != nil {
		return nil, err
	}
	sender, err := e.api.NewRTPSender(localTrack, t.dtls)
	if err != nil {
		return nil, err
	}
	sendParams := sender.GetParameters()
	if err := sender.Send(sendParams); err != nil {
		return nil, err
	}

	c := &Consumer{
		ID:          uuid.NewString(),
		Owner:       consumerFid,
		ProducerFid: producerFid,
		sender:      sender,
	}
	e.mu.Lock()
	e.consumers[c.ID] = c
	e.mu.Unlock()
	p.relay.addOutTrack(c.ID, newOutTrack(localTrack))

	var ssrc uint32
	if len(sendParams.Encodings) > 0 {
		ssrc = uint32(sendParams.Encodings[0].SSRC)
	}
	log.Info().Str("module", "media").Str("consumer_fid", string(consumerFid)).Str("producer_fid", string(producerFid)).Str("consumer", c.ID).Msg("consumer created")

	return &core.ConsumerDescriptor{
		TransportID: t.ID,
		ConsumerID:  c.ID,
		Kind:        "audio",
		RTPParameters: core.RTPParameters{
			SSRC:        ssrc,
			PayloadType: 111,
			Codec:       webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
		},
		Type:           "simple",
		ProducerPaused: p.paused.Load(),
	}, nil
}

// ToggleMute pauses or resumes an identity's producer. Reports the applied
// state so a failed toggle is never announced as a change.
func (e *Engine) ToggleMute(fid domain.Fid, muted bool) (bool, error) {
	e.mu.RLock()
	p, ok := e.producers[fid]
	e.mu.RUnlock()
	if !ok {
		return false, ErrProducerNotFound
	}
	p.paused.Store(muted)
	log.Info().Str("module", "media").Str("fid", string(fid)).Bool("muted", muted).Msg("producer mute toggled")
	return muted, nil
}

// StopBroadcasting releases fid's producer and every consumer it owns.
// Safe to call when there is nothing to release.
func (e *Engine) StopBroadcasting(fid domain.Fid) {
	e.mu.Lock()
	p := e.producers[fid]
	delete(e.producers, fid)
	owned := make([]*Consumer, 0)
	for id, c := range e.consumers {
		if c.Owner == fid {
			owned = append(owned, c)
			delete(e.consumers, id)
		}
	}
	producersByFid := make(map[domain.Fid]*Producer, len(owned))
	for _, c := range owned {
		if src, ok := e.producers[c.ProducerFid]; ok {
			producersByFid[c.ProducerFid] = src
		}
	}
	e.mu.Unlock()

	if p != nil {
		p.stop()
	}
	for _, c := range owned {
		if src, ok := producersByFid[c.ProducerFid]; ok {
			src.relay.removeOutTrack(c.ID)
		}
		if err := c.sender.Stop(); err != nil {
			log.Error().Err(err).Str("module", "media").Str("consumer", c.ID).Msg("sender stop")
		}
	}
	if p != nil || len(owned) > 0 {
		log.Info().Str("module", "media").Str("fid", string(fid)).Int("consumers_released", len(owned)).Msg("stopped broadcasting")
	}
}
