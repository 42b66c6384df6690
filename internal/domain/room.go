package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RoomID string

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

func (id RoomID) String() string { return string(id) }

// Room is the persisted meeting metadata. Live membership lives in core.RoomService.
type Room struct {
	ID        RoomID    `json:"room_id"`
	Name      string    `json:"name"`
	Host      Identity  `json:"host"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRoom builds meeting metadata for host; an empty name falls back to "Meeting <id>".
func NewRoom(name string, host Identity) *Room {
	id := NewRoomID()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Meeting " + string(id)
	}
	if r := []rune(name); len(r) > MaxRoomNameLen {
		name = string(r[:MaxRoomNameLen])
	}
	return &Room{ID: id, Name: name, Host: host, CreatedAt: time.Now().UTC()}
}
