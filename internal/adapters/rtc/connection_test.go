package rtc

import (
	"strings"
	"testing"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/pion/webrtc/v4"
)

// Negotiation only; no connectivity is required.
func TestOfferAnswerRoundTrip(t *testing.T) {
	f := NewFactory(nil)
	a, err := f.NewPeerConnection()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := f.NewPeerConnection()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", "test")
	if err != nil {
		t.Fatal(err)
	}
	sender, err := a.AddTrack(track)
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	offer, err := a.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if !strings.Contains(offer, "m=audio") {
		t.Fatalf("offer has no audio section:\n%s", offer)
	}
	answer, err := b.AcceptOffer(offer)
	if err != nil {
		t.Fatalf("AcceptOffer failed: %v", err)
	}
	if err := a.AcceptAnswer(answer); err != nil {
		t.Fatalf("AcceptAnswer failed: %v", err)
	}

	if err := sender.ReplaceTrack(nil); err != nil {
		t.Errorf("muting via ReplaceTrack(nil) failed: %v", err)
	}
	if err := sender.ReplaceTrack(track); err != nil {
		t.Errorf("unmuting failed: %v", err)
	}
}

func TestWebRTCConfig(t *testing.T) {
	if cfg := WebRTCConfig(nil); len(cfg.ICEServers) != 0 {
		t.Errorf("no servers expected, got %v", cfg.ICEServers)
	}
	cfg := WebRTCConfig([]string{"stun:a", "turn:b"})
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) != 2 {
		t.Errorf("ice servers = %+v", cfg.ICEServers)
	}
}

var _ media.RTPSource = remoteTrack{}
