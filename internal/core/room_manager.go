package core

import (
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// RoomManager owns the lifecycle of live rooms: created on the first valid
// join, stopped once idle for longer than the grace period.
type RoomManager interface {
	GetOrCreate(room *domain.Room) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	// Sweep stops every room idle since before now-grace and returns their ids.
	Sweep(now time.Time, grace time.Duration) []domain.RoomID
}
