package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/ShonaLabs/ShonClub/internal/domain"
)

// TransportDescriptor carries everything a client needs to connect a
// server-side transport: ICE credentials, gathered candidates and the DTLS
// fingerprint set.
type TransportDescriptor struct {
	ID             string                `json:"id"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

// RTPParameters is the reduced wire shape a producing client signals for its
// audio track.
type RTPParameters struct {
	MID         string `json:"mid,omitempty"`
	SSRC        uint32 `json:"ssrc"`
	PayloadType uint8  `json:"payloadType"`
	Codec       string `json:"codec"`
	ClockRate   uint32 `json:"clockRate"`
	Channels    uint16 `json:"channels"`
}

// ConsumerDescriptor describes a server-created consumer feeding one
// producer's audio to one subscriber.
type ConsumerDescriptor struct {
	TransportID    string        `json:"transportId"`
	ConsumerID     string        `json:"consumerId"`
	Kind           string        `json:"kind"`
	RTPParameters  RTPParameters `json:"rtpParameters"`
	Type           string        `json:"type"`
	ProducerPaused bool          `json:"producerPaused"`
}

// TransportConnectParams is what the client signals back to connect a
// transport: its own ICE credentials and candidates plus DTLS parameters.
type TransportConnectParams struct {
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

// MediaTransport is the SFU collaborator boundary. Calls may fail
// independently; a failure here must never corrupt room membership state.
type MediaTransport interface {
	CreateTransport(fid domain.Fid) (*TransportDescriptor, error)
	ConnectTransport(fid domain.Fid, transportID string, params TransportConnectParams) error
	HandleProducer(fid domain.Fid, transportID string, rtp RTPParameters) (string, error)
	CreateConsumer(consumerFid, producerFid domain.Fid) (*ConsumerDescriptor, error)
	ToggleMute(fid domain.Fid, muted bool) (bool, error)

	// StopBroadcasting releases the producer and every consumer owned by fid.
	// Idempotent; releasing a fid with no media resources is not an error.
	StopBroadcasting(fid domain.Fid)
}
