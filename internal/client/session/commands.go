package session

import (
	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// SendChat appends text to the local log and sends it to the room.
func (s *Session) SendChat(text string) error {
	return s.call(func() error {
		if s.Status() != StatusInMeeting {
			return domain.ErrUnexpectedState
		}
		msg, err := s.chat.Compose(text)
		if err != nil {
			return err
		}
		s.emit(ChatReceived{Message: msg, Own: true})
		return s.cfg.Transport.Send(protocol.Chat(msg))
	})
}

func (s *Session) Approve(id domain.Identity) error {
	return s.decide(id, domain.StatusApproved, "")
}

func (s *Session) Reject(id domain.Identity, reason string) error {
	return s.decide(id, domain.StatusRejected, reason)
}

func (s *Session) decide(id domain.Identity, status domain.AdmissionStatus, reason string) error {
	return s.call(func() error {
		if s.host != s.cfg.Local {
			return domain.ErrNotHost
		}
		return s.cfg.Transport.Send(protocol.Approval(id, status, reason, ""))
	})
}

func (s *Session) Kick(id domain.Identity, reason string) error {
	return s.call(func() error {
		if s.host != s.cfg.Local {
			return domain.ErrNotHost
		}
		if !s.roster.Contains(id) {
			return domain.ErrNotParticipant
		}
		return s.cfg.Transport.Send(protocol.Envelope{Type: protocol.TypeKick, Identity: id, Reason: reason})
	})
}

// SetMuted toggles what this client sends on every link. The capture itself
// keeps running.
func (s *Session) SetMuted(kind webrtc.RTPCodecType, muted bool) error {
	return s.call(func() error {
		s.mesh.SetTrackEnabled(kind, !muted)
		return nil
	})
}

// SetPeerMuted stops or resumes playback of one participant locally. It
// sticks across that peer's reconnects.
func (s *Session) SetPeerMuted(id domain.Identity, muted bool) error {
	return s.call(func() error {
		if id == s.cfg.Local || !s.roster.Contains(id) {
			return domain.ErrNotParticipant
		}
		if muted {
			s.peerMuted[id] = true
		} else {
			delete(s.peerMuted, id)
		}
		s.relays.SetSinkMuted(id, media.PlaybackSink, muted)
		return nil
	})
}

func (s *Session) Roster() ([]domain.Identity, error) {
	var out []domain.Identity
	err := s.call(func() error {
		out = s.roster.Current()
		return nil
	})
	return out, err
}

func (s *Session) Chat() ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := s.call(func() error {
		out = s.chat.Messages()
		return nil
	})
	return out, err
}

// Leave tells the server we are going and ends Run.
func (s *Session) Leave() error {
	return s.call(func() error {
		s.send(protocol.Envelope{Type: protocol.TypeLeave})
		s.setStatus(StatusClosed, "left")
		return nil
	})
}
