package media

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type Counters struct {
	AudioPackets uint64 `json:"audio_packets"`
	VideoPackets uint64 `json:"video_packets"`
	Bytes        uint64 `json:"bytes"`
}

type peerCounters struct {
	audio, video, bytes atomic.Uint64
}

// Stats counts what each remote peer has delivered.
type Stats struct {
	mu    sync.Mutex
	peers map[domain.Identity]*peerCounters
}

func NewStats() *Stats {
	return &Stats{peers: make(map[domain.Identity]*peerCounters)}
}

func (s *Stats) counters(peer domain.Identity) *peerCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.peers[peer]
	if !ok {
		c = &peerCounters{}
		s.peers[peer] = c
	}
	return c
}

func (s *Stats) SinkFor(peer domain.Identity, kind webrtc.RTPCodecType) Sink {
	return &statsSink{c: s.counters(peer), kind: kind}
}

func (s *Stats) Snapshot() map[domain.Identity]Counters {
	s.mu.Lock()
	peers := maps.Clone(s.peers)
	s.mu.Unlock()
	out := make(map[domain.Identity]Counters, len(peers))
	for id, c := range peers {
		out[id] = Counters{AudioPackets: c.audio.Load(), VideoPackets: c.video.Load(), Bytes: c.bytes.Load()}
	}
	return out
}

type statsSink struct {
	c    *peerCounters
	kind webrtc.RTPCodecType
}

func (s *statsSink) WriteRTP(pkt *rtp.Packet) error {
	if s.kind == webrtc.RTPCodecTypeVideo {
		s.c.video.Add(1)
	} else {
		s.c.audio.Add(1)
	}
	s.c.bytes.Add(uint64(len(pkt.Payload)))
	return nil
}
