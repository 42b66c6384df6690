package core

//go:generate mockgen -source=interfaces.go -destination=mocks/directory_mock.go -package=mocks

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

// Directory is the meeting/profile collaborator. Calls are idempotent.
type Directory interface {
	CreateMeeting(ctx context.Context, name string, host domain.Identity) (*domain.Room, error)
	// ValidateMeeting returns domain.ErrRoomNotFound for unknown ids.
	ValidateMeeting(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	GetHost(ctx context.Context, id domain.RoomID) (domain.Identity, error)
	GetProfile(ctx context.Context, id domain.Identity) (domain.Profile, error)
}

// ChatArchive keeps chat beyond the lifetime of a live room.
type ChatArchive interface {
	AppendChat(ctx context.Context, room domain.RoomID, msg domain.ChatMessage) error
	ListChat(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error)
}
