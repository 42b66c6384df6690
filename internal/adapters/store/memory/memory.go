// Package memory is the default in-process Directory and ChatArchive.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*domain.Room
	profiles map[domain.Identity]domain.Profile
	chat     map[domain.RoomID][]domain.ChatMessage
}

func New() *Store {
	return &Store{
		rooms:    make(map[domain.RoomID]*domain.Room),
		profiles: make(map[domain.Identity]domain.Profile),
		chat:     make(map[domain.RoomID][]domain.ChatMessage),
	}
}

func (s *Store) CreateMeeting(_ context.Context, name string, host domain.Identity) (*domain.Room, error) {
	room := domain.NewRoom(name, host)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return nil, domain.ErrRoomExists
	}
	s.rooms[room.ID] = room
	if _, ok := s.profiles[host]; !ok {
		s.profiles[host] = domain.Profile{Identity: host, DisplayName: string(host)}
	}
	cp := *room
	return &cp, nil
}

func (s *Store) ValidateMeeting(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (s *Store) GetHost(ctx context.Context, id domain.RoomID) (domain.Identity, error) {
	room, err := s.ValidateMeeting(ctx, id)
	if err != nil {
		return "", err
	}
	return room.Host, nil
}

func (s *Store) GetProfile(_ context.Context, id domain.Identity) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *Store) SaveProfile(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Identity] = p
	return nil
}

func (s *Store) AppendChat(_ context.Context, room domain.RoomID, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat[room] = append(s.chat[room], msg)
	return nil
}

// ListChat returns the newest limit messages oldest first; limit <= 0 means all.
func (s *Store) ListChat(_ context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.chat[room]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

func (s *Store) Close() error { return nil }
