package mesh

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Event interface{ isMeshEvent() }

type PeerConnected struct{ Peer domain.Identity }

// PeerFailed reports a link that failed or timed out. Other links are untouched.
type PeerFailed struct {
	Peer domain.Identity
	Err  error
}

type PeerClosed struct{ Peer domain.Identity }

type RemoteTrack struct {
	Peer  domain.Identity
	Track string
	Kind  webrtc.RTPCodecType
}

func (PeerConnected) isMeshEvent() {}
func (PeerFailed) isMeshEvent()    {}
func (PeerClosed) isMeshEvent()    {}
func (RemoteTrack) isMeshEvent()   {}
