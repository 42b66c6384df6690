package session

import (
	"time"

	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/domain"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusWaiting    Status = "waiting"
	StatusInMeeting  Status = "in-meeting"
	StatusRejected   Status = "rejected"
	StatusKicked     Status = "kicked"
	StatusFailed     Status = "failed"
	StatusClosed     Status = "closed"
)

// Terminal statuses end Run.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusKicked, StatusFailed, StatusClosed:
		return true
	}
	return false
}

type Event interface{ isSessionEvent() }

type StatusChanged struct {
	Status Status
	Reason string
}

type RosterChanged struct {
	Participants []domain.Identity
	Added        []domain.Identity
	Removed      []domain.Identity
}

// JoinRequested and JoinCancelled only reach the host.
type JoinRequested struct {
	Identity    domain.Identity
	RequestedAt time.Time
}

type JoinCancelled struct{ Identity domain.Identity }

type ChatReceived struct {
	Message domain.ChatMessage
	Own     bool
}

// ChatHistory carries the backlog messages that were not already in the log.
type ChatHistory struct{ Messages []domain.ChatMessage }

type Kicked struct {
	Reason string
	By     domain.Identity
}

type ParticipantKicked struct {
	Identity domain.Identity
	Reason   string
	By       domain.Identity
}

// ReceiveOnly reports that local capture failed and the session continues
// without sending media.
type ReceiveOnly struct{ Err error }

type ServerError struct{ Message string }

// PeerEvent wraps link lifecycle events from the mesh.
type PeerEvent struct{ mesh.Event }

func (StatusChanged) isSessionEvent()     {}
func (RosterChanged) isSessionEvent()     {}
func (JoinRequested) isSessionEvent()     {}
func (JoinCancelled) isSessionEvent()     {}
func (ChatReceived) isSessionEvent()      {}
func (ChatHistory) isSessionEvent()       {}
func (Kicked) isSessionEvent()            {}
func (ParticipantKicked) isSessionEvent() {}
func (ReceiveOnly) isSessionEvent()       {}
func (ServerError) isSessionEvent()       {}
func (PeerEvent) isSessionEvent()         {}
