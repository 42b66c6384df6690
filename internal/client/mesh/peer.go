package mesh

import (
	"github.com/dkeye/Meet/internal/client/media"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the slice of a WebRTC peer connection a link drives.
// Callbacks fire on foreign goroutines.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (TrackSender, error)
	// CreateOffer creates an offer, applies it locally and returns its SDP.
	CreateOffer() (string, error)
	// AcceptOffer applies a remote offer and returns the local answer SDP.
	AcceptOffer(sdp string) (string, error)
	AcceptAnswer(sdp string) error
	AddICECandidate(c webrtc.ICECandidateInit) error

	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnTrack(fn func(media.RTPSource))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	Close() error
}

// TrackSender is the per-link reference to a shared local track. Replacing
// it with nil mutes this link only.
type TrackSender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

type PeerConnectionFactory interface {
	NewPeerConnection() (PeerConnection, error)
}
