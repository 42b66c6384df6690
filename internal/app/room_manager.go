package app

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	opts  core.RoomOptions
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager(opts core.RoomOptions) core.RoomManager {
	return &RoomManagerImpl{opts: opts, rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) GetOrCreate(meta *domain.Room) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[meta.ID]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[meta.ID]; ok {
		return room
	}
	room = core.NewRoomService(meta, f.opts)
	f.rooms[meta.ID] = room
	log.Info().Str("module", "app.rooms").Str("room", string(meta.ID)).Str("host", string(meta.Host)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r.Info())
	}
	return out
}

func (f *RoomManagerImpl) Sweep(now time.Time, grace time.Duration) []domain.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stopped []domain.RoomID
	for id, r := range f.rooms {
		idle, since := r.Idle()
		if idle && now.Sub(since) >= grace {
			delete(f.rooms, id)
			stopped = append(stopped, id)
		}
	}
	if len(stopped) > 0 {
		log.Info().Str("module", "app.rooms").Int("count", len(stopped)).Msg("idle rooms stopped")
	}
	return stopped
}
