// Package mesh runs one PeerLink per remote participant. Every method must be
// called from the owning actor goroutine; foreign callbacks re-enter through
// Config.Post and are discarded once their link has been replaced.
package mesh

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const defaultMaxPendingICE = 64

var ErrPeerConnectionFailed = errors.New("peer connection failed")

// Signaler sends directed control messages to the server.
type Signaler interface {
	Send(env protocol.Envelope) error
}

type Config struct {
	Local          domain.Identity
	Factory        PeerConnectionFactory
	Signal         Signaler
	Post           func(fn func())
	Relays         *media.RelayManager
	ConnectTimeout time.Duration
	MaxPendingICE  int
	OnEvent        func(Event)
}

type sender struct {
	kind  webrtc.RTPCodecType
	track webrtc.TrackLocal
	ts    TrackSender
}

// Link is the local end of one peer pair.
type Link struct {
	Peer  domain.Identity
	State State

	gen        uint64
	pc         PeerConnection
	senders    []sender
	pendingICE []webrtc.ICECandidateInit
	remoteSet  bool
	timer      *time.Timer
}

type Mesh struct {
	cfg    Config
	tracks []webrtc.TrackLocal
	muted  map[webrtc.RTPCodecType]bool
	links  map[domain.Identity]*Link
	early  map[domain.Identity][]webrtc.ICECandidateInit
	gen    uint64
}

func New(cfg Config) *Mesh {
	if cfg.MaxPendingICE <= 0 {
		cfg.MaxPendingICE = defaultMaxPendingICE
	}
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(Event) {}
	}
	return &Mesh{
		cfg:   cfg,
		muted: make(map[webrtc.RTPCodecType]bool),
		links: make(map[domain.Identity]*Link),
		early: make(map[domain.Identity][]webrtc.ICECandidateInit),
	}
}

// SetLocalTracks sets the shared tracks attached to links created afterwards.
func (m *Mesh) SetLocalTracks(tracks []webrtc.TrackLocal) {
	m.tracks = slices.Clone(tracks)
}

func (m *Mesh) State(peer domain.Identity) (State, bool) {
	l, ok := m.links[peer]
	if !ok {
		return 0, false
	}
	return l.State, true
}

// Peers returns the identities with a link, in no particular order.
func (m *Mesh) Peers() []domain.Identity {
	out := make([]domain.Identity, 0, len(m.links))
	for p := range m.links {
		out = append(out, p)
	}
	return out
}

// Ensure creates the link to peer if there is none. The initiator sends the
// offer right away.
func (m *Mesh) Ensure(peer domain.Identity, initiate bool) {
	if _, ok := m.links[peer]; ok || peer == m.cfg.Local {
		return
	}
	l, err := m.newLink(peer)
	if err != nil {
		return
	}
	if initiate {
		m.offer(l)
	}
}

func (m *Mesh) HandleOffer(from domain.Identity, sdp string) {
	l, ok := m.links[from]
	switch {
	case !ok:
	case l.State == StateConnected || l.State == StateAnswerSent || l.State == StateOfferReceived:
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Str("state", l.State.String()).Msg("duplicate offer ignored")
		return
	case l.State == StateOfferSent:
		// glare: the lower identity keeps its own offer
		if m.cfg.Local < from {
			log.Debug().Str("module", "mesh").Str("peer", string(from)).Msg("glare, keeping local offer")
			return
		}
		m.drop(l)
		ok = false
	case l.State == StateFailed:
		m.drop(l)
		ok = false
	}
	if !ok {
		var err error
		if l, err = m.newLink(from); err != nil {
			return
		}
	}

	l.State = StateOfferReceived
	answer, err := l.pc.AcceptOffer(sdp)
	if err != nil {
		m.fail(l, err)
		return
	}
	m.remoteApplied(l)
	if err := m.cfg.Signal.Send(protocol.Envelope{Type: protocol.TypeAnswer, To: from, SDP: answer}); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("peer", string(from)).Msg("send answer")
	}
	l.State = StateAnswerSent
}

func (m *Mesh) HandleAnswer(from domain.Identity, sdp string) {
	l, ok := m.links[from]
	if !ok || l.State != StateOfferSent || l.remoteSet {
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Msg("unexpected answer ignored")
		return
	}
	if err := l.pc.AcceptAnswer(sdp); err != nil {
		m.fail(l, err)
		return
	}
	m.remoteApplied(l)
}

// HandleCandidate applies c, or buffers it until the link exists and has a
// remote description.
func (m *Mesh) HandleCandidate(from domain.Identity, c webrtc.ICECandidateInit) {
	l, ok := m.links[from]
	if !ok {
		m.early[from] = bounded(append(m.early[from], c), m.cfg.MaxPendingICE)
		return
	}
	if l.State.Terminal() {
		return
	}
	if !l.remoteSet {
		l.pendingICE = bounded(append(l.pendingICE, c), m.cfg.MaxPendingICE)
		return
	}
	if err := l.pc.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("peer", string(from)).Msg("add ice candidate")
	}
}

// Remove tears down the link to peer and that peer's remote relays. The
// shared local stream is left running.
func (m *Mesh) Remove(peer domain.Identity) {
	delete(m.early, peer)
	l, ok := m.links[peer]
	if !ok {
		return
	}
	m.drop(l)
	m.cfg.OnEvent(PeerClosed{Peer: peer})
}

func (m *Mesh) CloseAll() {
	for peer := range m.links {
		m.Remove(peer)
	}
	clear(m.early)
}

// SetTrackEnabled mutes or unmutes every link's own reference to tracks of kind.
func (m *Mesh) SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) {
	m.muted[kind] = !enabled
	for _, l := range m.links {
		for _, s := range l.senders {
			if s.kind != kind {
				continue
			}
			if err := s.ts.ReplaceTrack(m.senderTrack(s)); err != nil {
				log.Warn().Err(err).Str("module", "mesh").Str("peer", string(l.Peer)).Msg("replace track")
			}
		}
	}
}

func (m *Mesh) senderTrack(s sender) webrtc.TrackLocal {
	if m.muted[s.kind] {
		return nil
	}
	return s.track
}

func (m *Mesh) newLink(peer domain.Identity) (*Link, error) {
	pc, err := m.cfg.Factory.NewPeerConnection()
	if err != nil {
		m.cfg.OnEvent(PeerFailed{Peer: peer, Err: domain.PeerLinkFailure("create", peer, err)})
		return nil, err
	}
	m.gen++
	l := &Link{Peer: peer, State: StateNew, gen: m.gen, pc: pc}
	m.links[peer] = l

	if early, ok := m.early[peer]; ok {
		l.pendingICE = early
		delete(m.early, peer)
	}
	m.bind(l)

	for _, t := range m.tracks {
		ts, err := pc.AddTrack(t)
		if err != nil {
			m.fail(l, err)
			return nil, err
		}
		s := sender{kind: t.Kind(), track: t, ts: ts}
		if m.muted[s.kind] {
			if err := ts.ReplaceTrack(nil); err != nil {
				log.Warn().Err(err).Str("module", "mesh").Str("peer", string(peer)).Msg("replace track")
			}
		}
		l.senders = append(l.senders, s)
	}

	if m.cfg.ConnectTimeout > 0 {
		gen := l.gen
		l.timer = time.AfterFunc(m.cfg.ConnectTimeout, func() {
			m.cfg.Post(func() {
				if cur := m.current(peer, gen); cur != nil && cur.State != StateConnected && !cur.State.Terminal() {
					m.fail(cur, domain.ErrConnectTimeout)
				}
			})
		})
	}
	log.Info().Str("module", "mesh").Str("peer", string(peer)).Uint64("gen", l.gen).Msg("link created")
	return l, nil
}

// bind routes pion callbacks back onto the actor, tagged with the link generation.
func (m *Mesh) bind(l *Link) {
	peer, gen := l.Peer, l.gen
	l.pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.cfg.Post(func() {
			if m.current(peer, gen) == nil {
				return
			}
			cand := c
			if err := m.cfg.Signal.Send(protocol.Envelope{Type: protocol.TypeICECandidate, To: peer, Candidate: &cand}); err != nil {
				log.Debug().Err(err).Str("module", "mesh").Str("peer", string(peer)).Msg("send ice candidate")
			}
		})
	})
	l.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.cfg.Post(func() { m.onConnectionState(peer, gen, s) })
	})
	l.pc.OnTrack(func(src media.RTPSource) {
		m.cfg.Post(func() {
			if m.current(peer, gen) == nil {
				return
			}
			if m.cfg.Relays != nil {
				m.cfg.Relays.StartRelay(context.Background(), peer, src)
			}
			m.cfg.OnEvent(RemoteTrack{Peer: peer, Track: src.ID(), Kind: src.Kind()})
		})
	})
}

func (m *Mesh) current(peer domain.Identity, gen uint64) *Link {
	l, ok := m.links[peer]
	if !ok || l.gen != gen {
		return nil
	}
	return l
}

func (m *Mesh) onConnectionState(peer domain.Identity, gen uint64, s webrtc.PeerConnectionState) {
	l := m.current(peer, gen)
	if l == nil || l.State.Terminal() {
		return
	}
	log.Debug().Str("module", "mesh").Str("peer", string(peer)).Str("pc_state", s.String()).Msg("peer state")
	switch s {
	case webrtc.PeerConnectionStateConnected:
		if l.State == StateConnected {
			return
		}
		l.State = StateConnected
		if l.timer != nil {
			l.timer.Stop()
		}
		log.Info().Str("module", "mesh").Str("peer", string(peer)).Msg("link connected")
		m.cfg.OnEvent(PeerConnected{Peer: peer})
	case webrtc.PeerConnectionStateFailed:
		m.fail(l, ErrPeerConnectionFailed)
	}
}

func (m *Mesh) offer(l *Link) {
	sdp, err := l.pc.CreateOffer()
	if err != nil {
		m.fail(l, err)
		return
	}
	l.State = StateOfferSent
	if err := m.cfg.Signal.Send(protocol.Envelope{Type: protocol.TypeOffer, To: l.Peer, SDP: sdp}); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("peer", string(l.Peer)).Msg("send offer")
	}
}

func (m *Mesh) remoteApplied(l *Link) {
	l.remoteSet = true
	pending := l.pendingICE
	l.pendingICE = nil
	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "mesh").Str("peer", string(l.Peer)).Msg("replay ice candidate")
		}
	}
}

// fail closes the link's connection but keeps the entry so duplicate signals
// stay no-ops until the roster drops the peer or it offers again.
func (m *Mesh) fail(l *Link, err error) {
	log.Warn().Err(err).Str("module", "mesh").Str("peer", string(l.Peer)).Str("state", l.State.String()).Msg("link failed")
	m.release(l)
	l.State = StateFailed
	m.cfg.OnEvent(PeerFailed{Peer: l.Peer, Err: domain.PeerLinkFailure("connect", l.Peer, err)})
}

func (m *Mesh) drop(l *Link) {
	m.release(l)
	l.State = StateClosed
	delete(m.links, l.Peer)
}

func (m *Mesh) release(l *Link) {
	if l.timer != nil {
		l.timer.Stop()
	}
	if !l.State.Terminal() {
		if err := l.pc.Close(); err != nil {
			log.Debug().Err(err).Str("module", "mesh").Str("peer", string(l.Peer)).Msg("close peer connection")
		}
	}
	if m.cfg.Relays != nil {
		m.cfg.Relays.StopPeer(l.Peer)
	}
}

func bounded(c []webrtc.ICECandidateInit, limit int) []webrtc.ICECandidateInit {
	if len(c) > limit {
		return slices.Clone(c[len(c)-limit:])
	}
	return c
}
