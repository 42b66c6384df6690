// Package protocol defines the control-channel envelope shared by the
// coordination server and its clients.
package protocol

import (
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Type string

// Message type constants.
const (
	TypeWelcome           Type = "welcome"
	TypeJoinRequest       Type = "join-request"
	TypeJoinCancelled     Type = "join-cancelled"
	TypeApproval          Type = "approval"
	TypeRoster            Type = "roster"
	TypeOffer             Type = "offer"
	TypeAnswer            Type = "answer"
	TypeICECandidate      Type = "ice-candidate"
	TypeChat              Type = "chat"
	TypeChatHistory       Type = "chat-history"
	TypeKick              Type = "kick"
	TypeKicked            Type = "kicked"
	TypeParticipantKicked Type = "participant-kicked"
	TypeLeave             Type = "leave"
	TypeError             Type = "error"
	TypePing              Type = "ping"
	TypePong              Type = "pong"
)

// Envelope is the single frame shape for every control message; unused fields are omitted.
type Envelope struct {
	Type         Type                     `json:"type"`
	Identity     domain.Identity          `json:"identity,omitempty"`
	From         domain.Identity          `json:"from,omitempty"`
	To           domain.Identity          `json:"to,omitempty"`
	Status       domain.AdmissionStatus   `json:"status,omitempty"`
	Reason       string                   `json:"reason,omitempty"`
	By           domain.Identity          `json:"by,omitempty"`
	Host         domain.Identity          `json:"host,omitempty"`
	Room         domain.RoomID            `json:"room,omitempty"`
	Participants []domain.Identity        `json:"participants,omitempty"`
	RequestedAt  *time.Time               `json:"requested_at,omitempty"`
	SDP          string                   `json:"sdp,omitempty"`
	Candidate    *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Chat         *domain.ChatMessage      `json:"chat,omitempty"`
	Messages     []domain.ChatMessage     `json:"messages,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// Validate checks that the fields a type requires are present.
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeWelcome:
		if e.Identity == "" || e.Host == "" {
			return missing(e.Type, "identity/host")
		}
	case TypeJoinRequest, TypeJoinCancelled:
		// the server fills identity on client-originated requests
	case TypeApproval:
		if e.Identity == "" {
			return missing(e.Type, "identity")
		}
		if e.Status != domain.StatusApproved && e.Status != domain.StatusRejected {
			return fmt.Errorf("%w: approval status %q", domain.ErrMalformedMessage, e.Status)
		}
	case TypeRoster:
		// an empty roster is legal
	case TypeOffer, TypeAnswer:
		if e.To == "" && e.From == "" {
			return missing(e.Type, "from/to")
		}
		if e.SDP == "" {
			return missing(e.Type, "sdp")
		}
	case TypeICECandidate:
		if e.To == "" && e.From == "" {
			return missing(e.Type, "from/to")
		}
		if e.Candidate == nil {
			return missing(e.Type, "candidate")
		}
	case TypeChat:
		if e.Chat == nil {
			return missing(e.Type, "chat")
		}
	case TypeChatHistory:
	case TypeKick:
		if e.Identity == "" {
			return missing(e.Type, "identity")
		}
	case TypeKicked, TypeParticipantKicked:
		if e.Identity == "" {
			return missing(e.Type, "identity")
		}
	case TypeLeave, TypeError, TypePing, TypePong:
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownMessage, e.Type)
	}
	return nil
}

func missing(t Type, field string) error {
	return fmt.Errorf("%w: %s without %s", domain.ErrMalformedMessage, t, field)
}

// Helpers building the server-originated envelopes.

func Welcome(room domain.RoomID, id, host domain.Identity, status domain.AdmissionStatus) Envelope {
	return Envelope{Type: TypeWelcome, Room: room, Identity: id, Host: host, Status: status}
}

func Roster(participants []domain.Identity) Envelope {
	return Envelope{Type: TypeRoster, Participants: participants}
}

func JoinRequest(req domain.JoinRequest) Envelope {
	at := req.RequestedAt
	return Envelope{Type: TypeJoinRequest, Identity: req.Identity, RequestedAt: &at}
}

func Approval(id domain.Identity, status domain.AdmissionStatus, reason string, by domain.Identity) Envelope {
	return Envelope{Type: TypeApproval, Identity: id, Status: status, Reason: reason, By: by}
}

func Kicked(id domain.Identity, reason string, by domain.Identity) Envelope {
	return Envelope{Type: TypeKicked, Identity: id, Reason: reason, By: by}
}

func Chat(msg domain.ChatMessage) Envelope {
	return Envelope{Type: TypeChat, Chat: &msg}
}

func ChatHistory(msgs []domain.ChatMessage) Envelope {
	return Envelope{Type: TypeChatHistory, Messages: msgs}
}

func Error(err string) Envelope {
	return Envelope{Type: TypeError, Error: err}
}
