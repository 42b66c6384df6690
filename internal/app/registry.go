package app

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// binding ties one websocket to the room it joined and the cancel func of its pumps.
type binding struct {
	room   domain.RoomID
	sess   core.MemberSession
	cancel context.CancelFunc
}

// Registry maps live connections to their room.
type Registry struct {
	mu    sync.RWMutex
	bound map[core.SessionID]binding
}

func NewRegistry() *Registry {
	return &Registry{bound: make(map[core.SessionID]binding)}
}

func (r *Registry) Bind(room domain.RoomID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	r.bound[sess.ID()] = binding{room: room, sess: sess, cancel: cancel}
	r.mu.Unlock()
	log.Debug().Str("module", "app.registry").Str("sid", string(sess.ID())).Str("room", string(room)).
		Str("identity", string(sess.Identity())).Msg("bound")
}

// Lookup returns the room and session behind sid.
func (r *Registry) Lookup(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bound[sid]
	if !ok {
		return "", nil, false
	}
	return b.room, b.sess, true
}

// Unbind removes sid and returns where it was bound. Only the first call
// for a sid reports ok.
func (r *Registry) Unbind(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.Lock()
	b, ok := r.bound[sid]
	delete(r.bound, sid)
	r.mu.Unlock()
	if ok {
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(b.room)).Msg("unbound")
	}
	return b.room, ok
}

// Cancel stops the pumps of sid; the read pump then reports the disconnect.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	b, ok := r.bound[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if b.cancel != nil {
		b.cancel()
	}
	return true
}
