// Package session is the participant engine. Run owns every piece of client
// state on one goroutine; transport events, user commands and peer
// connection callbacks are all executed there in arrival order.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dkeye/Meet/internal/client/chat"
	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/client/roster"
	"github.com/dkeye/Meet/internal/client/transport"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrRejected  = errors.New("join rejected by host")
	ErrNotActive = errors.New("session is not running")
)

// Transport is the control channel as the session uses it.
type Transport interface {
	Connect(ctx context.Context) error
	Send(env protocol.Envelope) error
	Events() <-chan transport.Event
	Close()
}

type Config struct {
	Local     domain.Identity
	Room      domain.RoomID
	Transport Transport
	Factory   mesh.PeerConnectionFactory
	Acquirer  media.Acquirer
	Media     media.Request

	// Playback, when set, gives each remote track an output (speaker,
	// recorder). Muting a peer pauses its playback sinks.
	Playback func(peer domain.Identity, kind webrtc.RTPCodecType) (media.Sink, error)

	AllowReceiveOnly bool
	ConnectTimeout   time.Duration
	MaxChatLength    int
}

type Session struct {
	cfg Config

	actions chan func()
	events  chan Event
	done    chan struct{}
	started atomic.Bool
	status  atomic.Value

	host   domain.Identity
	roster roster.Synchronizer
	mesh   *mesh.Mesh
	chat   *chat.Log
	local  *media.LocalStream
	relays *media.RelayManager
	stats  *media.Stats
	result error

	peerMuted map[domain.Identity]bool
}

func New(cfg Config) *Session {
	s := &Session{
		cfg:     cfg,
		actions: make(chan func(), 128),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		chat:    chat.NewLog(cfg.Local, cfg.MaxChatLength),
		stats:   media.NewStats(),

		peerMuted: make(map[domain.Identity]bool),
	}
	s.status.Store(StatusIdle)
	s.relays = media.NewRelayManager(s.stats)
	s.mesh = mesh.New(mesh.Config{
		Local:          cfg.Local,
		Factory:        cfg.Factory,
		Signal:         cfg.Transport,
		Post:           s.post,
		Relays:         s.relays,
		ConnectTimeout: cfg.ConnectTimeout,
		OnEvent:        s.onMeshEvent,
	})
	return s
}

// Events is closed when Run returns.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Status() Status { return s.status.Load().(Status) }

func (s *Session) Stats() map[domain.Identity]media.Counters { return s.stats.Snapshot() }

// Run acquires local media, connects and processes events until the session
// reaches a terminal status or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}
	defer close(s.events)
	defer close(s.done)

	if err := s.acquire(ctx); err != nil {
		s.setStatus(StatusFailed, err.Error())
		return err
	}

	s.setStatus(StatusConnecting, "")
	if err := s.cfg.Transport.Connect(ctx); err != nil {
		s.setStatus(StatusFailed, err.Error())
		s.local.Stop()
		return err
	}

	logger := log.With().Str("module", "session").Str("room", string(s.cfg.Room)).
		Str("identity", string(s.cfg.Local)).Logger()
	logger.Info().Msg("session started")

	incoming := s.cfg.Transport.Events()
	for !s.Status().Terminal() {
		select {
		case <-ctx.Done():
			s.setStatus(StatusClosed, "")
			s.result = ctx.Err()
		case fn := <-s.actions:
			fn()
		case ev, ok := <-incoming:
			if !ok {
				incoming = nil
				if !s.Status().Terminal() {
					s.setStatus(StatusClosed, "connection closed")
				}
				continue
			}
			s.onTransport(ev)
		}
	}

	s.shutdown()
	logger.Info().Str("status", string(s.Status())).Msg("session ended")
	return s.result
}

func (s *Session) acquire(ctx context.Context) error {
	if s.cfg.Acquirer == nil {
		return nil
	}
	stream, err := s.cfg.Acquirer.Acquire(ctx, s.cfg.Media)
	if err != nil {
		if !s.cfg.AllowReceiveOnly {
			return err
		}
		log.Warn().Err(err).Str("module", "session").Msg("continuing receive-only")
		s.emit(ReceiveOnly{Err: err})
		return nil
	}
	s.local = stream
	s.mesh.SetLocalTracks(stream.Tracks())
	return nil
}

func (s *Session) shutdown() {
	s.mesh.CloseAll()
	s.relays.StopAll()
	s.local.Stop()
	s.cfg.Transport.Close()
}

func (s *Session) setStatus(st Status, reason string) {
	if s.Status() == st {
		return
	}
	s.status.Store(st)
	log.Info().Str("module", "session").Str("status", string(st)).Str("reason", reason).Msg("status changed")
	s.emit(StatusChanged{Status: st, Reason: reason})
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		log.Warn().Str("module", "session").Msgf("event dropped: %T", e)
	}
}

// post hands fn to the actor. Calls after Run has returned are discarded.
func (s *Session) post(fn func()) {
	select {
	case s.actions <- fn:
	case <-s.done:
	}
}

// call runs fn on the actor and waits for its result.
func (s *Session) call(fn func() error) error {
	if !s.started.Load() {
		return ErrNotActive
	}
	res := make(chan error, 1)
	select {
	case s.actions <- func() { res <- fn() }:
	case <-s.done:
		return ErrNotActive
	}
	select {
	case err := <-res:
		return err
	case <-s.done:
		// fn may have been the action that ended Run
		select {
		case err := <-res:
			return err
		default:
			return ErrNotActive
		}
	}
}

func (s *Session) send(env protocol.Envelope) {
	if err := s.cfg.Transport.Send(env); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("type", string(env.Type)).Msg("send failed")
	}
}
