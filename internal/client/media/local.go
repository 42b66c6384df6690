// Package media holds the locally captured stream shared by every peer link
// and the relays that consume remote tracks.
package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const streamID = "meet-local"

var ErrNoDevices = errors.New("no media devices requested")

// LocalStream is owned by whoever acquired it. Links only reference its
// tracks; only the owner may Stop it.
type LocalStream struct {
	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// Tracks returns every track to attach to a new link, audio first.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	if s == nil {
		return nil
	}
	var out []webrtc.TrackLocal
	if s.audio != nil {
		out = append(out, s.audio)
	}
	if s.video != nil {
		out = append(out, s.video)
	}
	return out
}

func (s *LocalStream) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		log.Info().Str("module", "media").Msg("local stream stopped")
	})
}

type Request struct {
	Audio bool
	Video bool
}

// Acquirer opens local capture. It may block (device permission prompts).
type Acquirer interface {
	Acquire(ctx context.Context, req Request) (*LocalStream, error)
}

// SyntheticAcquirer stands in for capture devices on headless clients: audio
// carries Opus silence at a 20ms frame rate, video is negotiated but idle.
type SyntheticAcquirer struct{}

// opus "silence" frame (TOC 0xF8, CELT-only 20ms)
var opusSilence = []byte{0xf8, 0xff, 0xfe}

func (SyntheticAcquirer) Acquire(ctx context.Context, req Request) (*LocalStream, error) {
	if !req.Audio && !req.Video {
		return nil, domain.MediaAcquisitionError("acquire", ErrNoDevices)
	}
	s := &LocalStream{}
	var err error
	if req.Audio {
		s.audio, err = webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", streamID)
		if err != nil {
			return nil, domain.MediaAcquisitionError("acquire audio", err)
		}
	}
	if req.Video {
		s.video, err = webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "video", streamID)
		if err != nil {
			return nil, domain.MediaAcquisitionError("acquire video", err)
		}
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.audio != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			pumpSilence(pumpCtx, s.audio)
		}()
	}
	log.Info().Str("module", "media").Bool("audio", req.Audio).Bool("video", req.Video).Msg("local stream acquired")
	return s, nil
}

func pumpSilence(ctx context.Context, track *webrtc.TrackLocalStaticRTP) {
	const frame = 20 * time.Millisecond
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	pkt := &rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 111}, Payload: opusSilence}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pkt.SequenceNumber++
			pkt.Timestamp += 960
			// no bound senders is not an error worth logging
			_ = track.WriteRTP(pkt)
		}
	}
}
