package session

import (
	"time"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/client/roster"
	"github.com/dkeye/Meet/internal/client/transport"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (s *Session) onTransport(ev transport.Event) {
	switch e := ev.(type) {
	case transport.Connected:
		log.Info().Str("module", "session").Bool("reconnect", e.Reconnect).Msg("connected")
		s.setStatus(StatusConnecting, "")
	case transport.Disconnected:
		// links are rebuilt from the roster we get after readmission
		s.mesh.CloseAll()
		d := s.roster.Reset()
		if len(d.Removed) > 0 {
			s.emit(RosterChanged{Removed: d.Removed})
		}
		s.setStatus(StatusConnecting, e.Err.Error())
	case transport.Failed:
		s.result = e.Err
		s.setStatus(StatusFailed, e.Err.Error())
	case transport.Message:
		s.onMessage(e.Env)
	}
}

func (s *Session) onMessage(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeWelcome:
		s.host = env.Host
		if env.Host == s.cfg.Local {
			s.setStatus(StatusInMeeting, "")
			return
		}
		s.setStatus(StatusWaiting, "")
		s.send(protocol.Envelope{Type: protocol.TypeJoinRequest})

	case protocol.TypeApproval:
		if env.Identity != s.cfg.Local {
			return
		}
		switch env.Status {
		case domain.StatusApproved:
			s.setStatus(StatusInMeeting, "")
		case domain.StatusRejected:
			s.result = domain.AdmissionError("join", s.cfg.Local, ErrRejected)
			s.setStatus(StatusRejected, env.Reason)
		}

	case protocol.TypeRoster:
		s.onRoster(env.Participants)

	case protocol.TypeOffer:
		s.mesh.HandleOffer(env.From, env.SDP)
	case protocol.TypeAnswer:
		s.mesh.HandleAnswer(env.From, env.SDP)
	case protocol.TypeICECandidate:
		s.mesh.HandleCandidate(env.From, *env.Candidate)

	case protocol.TypeChat:
		if env.Chat != nil && s.chat.Receive(*env.Chat) {
			s.emit(ChatReceived{Message: *env.Chat})
		}
	case protocol.TypeChatHistory:
		if added := s.chat.Merge(env.Messages); len(added) > 0 {
			s.emit(ChatHistory{Messages: added})
		}

	case protocol.TypeJoinRequest:
		var at time.Time
		if env.RequestedAt != nil {
			at = *env.RequestedAt
		}
		s.emit(JoinRequested{Identity: env.Identity, RequestedAt: at})
	case protocol.TypeJoinCancelled:
		s.emit(JoinCancelled{Identity: env.Identity})

	case protocol.TypeKicked:
		if env.Identity != "" && env.Identity != s.cfg.Local {
			return
		}
		s.emit(Kicked{Reason: env.Reason, By: env.By})
		s.result = domain.AdmissionError("kick", s.cfg.Local, domain.ErrEvicted)
		s.setStatus(StatusKicked, env.Reason)
	case protocol.TypeParticipantKicked:
		s.emit(ParticipantKicked{Identity: env.Identity, Reason: env.Reason, By: env.By})

	case protocol.TypeError:
		log.Warn().Str("module", "session").Str("error", env.Error).Msg("server error")
		s.emit(ServerError{Message: env.Error})
	case protocol.TypePong:
	default:
		log.Debug().Str("module", "session").Str("type", string(env.Type)).Msg("unhandled message")
	}
}

// onRoster applies the server's list and reconciles links against it.
func (s *Session) onRoster(participants []domain.Identity) {
	d := s.roster.Apply(participants)
	current := s.roster.Current()

	for _, peer := range s.mesh.Peers() {
		if !s.roster.Contains(peer) {
			s.mesh.Remove(peer)
		}
	}
	if s.roster.Contains(s.cfg.Local) {
		for _, peer := range current {
			if peer == s.cfg.Local {
				continue
			}
			s.mesh.Ensure(peer, roster.Initiates(current, s.cfg.Local, peer))
		}
	}
	if !d.Empty() {
		s.emit(RosterChanged{Participants: current, Added: d.Added, Removed: d.Removed})
	}
}

func (s *Session) onMeshEvent(e mesh.Event) {
	if rt, ok := e.(mesh.RemoteTrack); ok && s.cfg.Playback != nil {
		s.attachPlayback(rt)
	}
	s.emit(PeerEvent{e})
}

func (s *Session) attachPlayback(rt mesh.RemoteTrack) {
	sink, err := s.cfg.Playback(rt.Peer, rt.Kind)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Str("peer", string(rt.Peer)).Msg("no playback for remote track")
		return
	}
	if !s.relays.AddSink(rt.Peer, rt.Track, media.PlaybackSink, sink) {
		return
	}
	if s.peerMuted[rt.Peer] {
		s.relays.SetSinkMuted(rt.Peer, media.PlaybackSink, true)
	}
}
