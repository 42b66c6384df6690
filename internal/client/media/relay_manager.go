package media

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	statsSinkName = "stats"
	// PlaybackSink is the name the session gives each remote track's output.
	PlaybackSink = "playback"
)

// RelayManager tracks the relays of every remote peer. Tearing a peer down
// only touches that peer's relays.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[domain.Identity]map[string]*Relay
	stats  *Stats
}

func NewRelayManager(stats *Stats) *RelayManager {
	return &RelayManager{
		relays: make(map[domain.Identity]map[string]*Relay),
		stats:  stats,
	}
}

// StartRelay begins pumping src for peer, replacing a relay for the same track id.
func (m *RelayManager) StartRelay(ctx context.Context, peer domain.Identity, src RTPSource) *Relay {
	logger := log.With().
		Str("module", "media.relay").
		Str("peer", string(peer)).
		Str("track", src.ID()).
		Str("kind", src.Kind().String()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)
	if m.stats != nil {
		relay.AddSink(statsSinkName, m.stats.SinkFor(peer, src.Kind()))
	}

	m.mu.Lock()
	byTrack, ok := m.relays[peer]
	if !ok {
		byTrack = make(map[string]*Relay)
		m.relays[peer] = byTrack
	}
	if old, ok := byTrack[src.ID()]; ok {
		logger.Info().Msg("replacing existing relay")
		old.markAllDelete()
		old.cancel()
	}
	byTrack[src.ID()] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
	return relay
}

// AddSink attaches s to the relay of one remote track. It reports false when
// peer has no such track.
func (m *RelayManager) AddSink(peer domain.Identity, track, name string, s Sink) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[peer][track]
	if ok {
		r.AddSink(name, s)
	}
	return ok
}

// SetSinkMuted pauses or resumes the named sink on every track of peer.
func (m *RelayManager) SetSinkMuted(peer domain.Identity, name string, muted bool) int {
	st := SinkStateOk
	if muted {
		st = SinkStateMuted
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.relays[peer] {
		if r.setState(name, st) {
			n++
		}
	}
	return n
}

// StopPeer stops the relays of one peer. The loops exit once the peer
// connection closes their source.
func (m *RelayManager) StopPeer(peer domain.Identity) {
	m.mu.Lock()
	byTrack, ok := m.relays[peer]
	delete(m.relays, peer)
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, r := range byTrack {
		r.markAllDelete()
		r.cancel()
	}
	log.Info().Str("module", "media.relay").Str("peer", string(peer)).Int("tracks", len(byTrack)).Msg("peer relays stopped")
}

func (m *RelayManager) StopAll() {
	m.mu.RLock()
	peers := make([]domain.Identity, 0, len(m.relays))
	for p := range m.relays {
		peers = append(peers, p)
	}
	m.mu.RUnlock()
	for _, p := range peers {
		m.StopPeer(p)
	}
}

func (m *RelayManager) HasRelay(peer domain.Identity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relays[peer]) > 0
}
