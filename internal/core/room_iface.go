package core

import (
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// JoinOutcome says what RequestJoin did with a request.
type JoinOutcome int

const (
	// JoinQueued: a new (or replacing) pending entry; the host must decide.
	JoinQueued JoinOutcome = iota
	// JoinReadmitted: approved earlier and reconnected within the readmit window.
	JoinReadmitted
	// JoinAlreadyParticipant: nothing changed.
	JoinAlreadyParticipant
	// JoinIgnored: the host never requests.
	JoinIgnored
)

type AttachResult struct {
	Superseded         MemberSession
	DroppedParticipant bool
}

// DetachResult describes what a disconnect removed.
type DetachResult struct {
	Identity       domain.Identity
	Current        bool // false when sid was already superseded
	WasParticipant bool
	WasPending     bool
}

type RoomOptions struct {
	ReadmitWindow        time.Duration
	AllowRejoinAfterKick bool
	HistoryLimit         int
}

// RoomService is the core-facing API of a live room.
// It owns admission state and the membership set but never closes transport resources.
type RoomService interface {
	Room() *domain.Room
	Host() domain.Identity
	Info() RoomInfo

	// Attach binds a session. A previous session with the same identity is
	// returned for closing and, if it was a participant, dropped from the roster.
	Attach(ms MemberSession) AttachResult
	AdmitHost(id domain.Identity) bool
	Detach(sid SessionID) DetachResult
	Idle() (bool, time.Time)

	RequestJoin(id domain.Identity, at time.Time) (JoinOutcome, error)
	Decide(by, target domain.Identity, approve bool) error
	Evict(by, target domain.Identity) error

	Status(id domain.Identity) domain.AdmissionStatus
	IsParticipant(id domain.Identity) bool
	Participants() []domain.Identity
	Pending() []domain.JoinRequest

	SendTo(id domain.Identity, env protocol.Envelope) error
	Broadcast(env protocol.Envelope) PublishResult
	SessionOf(id domain.Identity) (MemberSession, bool)

	AppendChat(msg domain.ChatMessage)
	ChatHistory() []domain.ChatMessage
	// LoadHistory puts the archived backlog in front of the live history the
	// first time load succeeds, and returns the merged history.
	LoadHistory(load func() ([]domain.ChatMessage, error)) ([]domain.ChatMessage, error)
}

type RoomInfo struct {
	ID           domain.RoomID `json:"room_id"`
	Name         string        `json:"name"`
	Host         string        `json:"host"`
	Participants int           `json:"participants"`
	Pending      int           `json:"pending"`
	Connected    int           `json:"client_count"`
}
