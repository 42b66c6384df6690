// Package rtc adapts pion PeerConnections to the client mesh.
package rtc

import (
	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func WebRTCConfig(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

// Factory builds one pion PeerConnection per link.
type Factory struct {
	cfg webrtc.Configuration
	api *webrtc.API
}

func NewFactory(iceServers []string) *Factory {
	return &Factory{cfg: WebRTCConfig(iceServers), api: webrtc.NewAPI()}
}

// NewFactoryWithAPI lets callers supply a tuned API (setting engine, codecs).
func NewFactoryWithAPI(api *webrtc.API, iceServers []string) *Factory {
	return &Factory{cfg: WebRTCConfig(iceServers), api: api}
}

func (f *Factory) NewPeerConnection() (mesh.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, domain.MediaAcquisitionError("new peer connection", err)
	}
	return &WebRTCConnection{pc: pc}, nil
}

type WebRTCConnection struct {
	pc *webrtc.PeerConnection
}

func (c *WebRTCConnection) AddTrack(track webrtc.TrackLocal) (mesh.TrackSender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	// drain RTCP so interceptors keep running
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return sender, nil
}

func (c *WebRTCConnection) CreateOffer() (string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (c *WebRTCConnection) AcceptOffer(sdp string) (string, error) {
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (c *WebRTCConnection) AcceptAnswer(sdp string) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (c *WebRTCConnection) OnTrack(fn func(media.RTPSource)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		fn(remoteTrack{track})
	})
}

func (c *WebRTCConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *WebRTCConnection) Close() error {
	return c.pc.Close()
}

type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r remoteTrack) ID() string                { return r.t.ID() }
func (r remoteTrack) Kind() webrtc.RTPCodecType { return r.t.Kind() }

func (r remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}
