package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room
	opts RoomOptions

	mu           sync.RWMutex
	bySID        map[SessionID]MemberSession
	byIdentity   map[domain.Identity]MemberSession
	status       map[domain.Identity]domain.AdmissionStatus
	participants []domain.Identity // admission order, drives the offer tie-break
	pending      []domain.JoinRequest
	departed     map[domain.Identity]time.Time
	history      []domain.ChatMessage
	idleSince    time.Time

	loadMu sync.Mutex
	loaded bool
}

func NewRoomService(room *domain.Room, opts RoomOptions) RoomService {
	return &roomImpl{
		room:       room,
		opts:       opts,
		bySID:      make(map[SessionID]MemberSession),
		byIdentity: make(map[domain.Identity]MemberSession),
		status:     make(map[domain.Identity]domain.AdmissionStatus),
		departed:   make(map[domain.Identity]time.Time),
		idleSince:  time.Now(),
	}
}

func (r *roomImpl) Room() *domain.Room    { return r.room }
func (r *roomImpl) Host() domain.Identity { return r.room.Host }

func (r *roomImpl) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		ID:           r.room.ID,
		Name:         r.room.Name,
		Host:         string(r.room.Host),
		Participants: len(r.participants),
		Pending:      len(r.pending),
		Connected:    len(r.bySID),
	}
}

func (r *roomImpl) Attach(ms MemberSession) AttachResult {
	id := ms.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()

	res := AttachResult{}
	if old, had := r.byIdentity[id]; had {
		delete(r.bySID, old.ID())
		res.Superseded = old
		// the old connection's peer links are gone; members must see it leave and rejoin
		if r.removeParticipantLocked(id) {
			res.DroppedParticipant = true
			r.departed[id] = time.Now()
		}
	}
	r.bySID[ms.ID()] = ms
	r.byIdentity[id] = ms
	r.idleSince = time.Time{}

	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(ms.ID())).
		Str("identity", string(id)).Bool("superseded", res.Superseded != nil).Msg("member attached")
	return res
}

// AdmitHost is the host's self-admission: no request phase, never pending.
func (r *roomImpl) AdmitHost(id domain.Identity) bool {
	if id != r.room.Host {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byIdentity[id]; !ok {
		return false
	}
	r.status[id] = domain.StatusApproved
	r.removePendingLocked(id)
	delete(r.departed, id)
	return r.addParticipantLocked(id)
}

func (r *roomImpl) Detach(sid SessionID) DetachResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms, ok := r.bySID[sid]
	if !ok {
		return DetachResult{}
	}
	id := ms.Identity()
	delete(r.bySID, sid)
	res := DetachResult{Identity: id}
	if cur, ok := r.byIdentity[id]; !ok || cur.ID() != sid {
		return res
	}
	res.Current = true
	delete(r.byIdentity, id)

	if r.removeParticipantLocked(id) {
		res.WasParticipant = true
		r.departed[id] = time.Now()
	}
	if r.removePendingLocked(id) {
		res.WasPending = true
		delete(r.status, id)
	}
	if len(r.bySID) == 0 {
		r.idleSince = time.Now()
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).
		Str("identity", string(id)).Bool("participant", res.WasParticipant).Msg("member detached")
	return res
}

// Idle reports whether no session is attached and since when.
func (r *roomImpl) Idle() (bool, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID) == 0, r.idleSince
}

func (r *roomImpl) RequestJoin(id domain.Identity, at time.Time) (JoinOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.room.Host {
		return JoinIgnored, nil
	}
	if slices.Contains(r.participants, id) {
		return JoinAlreadyParticipant, nil
	}
	if r.status[id] == domain.StatusEvicted && !r.opts.AllowRejoinAfterKick {
		return JoinIgnored, domain.AdmissionError("join", id, domain.ErrEvicted)
	}
	if left, ok := r.departed[id]; ok && r.status[id] == domain.StatusApproved {
		delete(r.departed, id)
		if r.opts.ReadmitWindow > 0 && time.Since(left) <= r.opts.ReadmitWindow {
			r.addParticipantLocked(id)
			return JoinReadmitted, nil
		}
	}

	r.status[id] = domain.StatusRequested
	for i := range r.pending {
		if r.pending[i].Identity == id {
			r.pending[i].RequestedAt = at
			return JoinQueued, nil
		}
	}
	r.pending = append(r.pending, domain.JoinRequest{Identity: id, RequestedAt: at})
	return JoinQueued, nil
}

func (r *roomImpl) Decide(by, target domain.Identity, approve bool) error {
	if by != r.room.Host {
		return domain.AdmissionError("decide", by, domain.ErrNotHost)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status[target] != domain.StatusRequested {
		return domain.AdmissionError("decide", target, domain.ErrNotPending)
	}
	r.removePendingLocked(target)
	if approve {
		r.status[target] = domain.StatusApproved
		r.addParticipantLocked(target)
	} else {
		r.status[target] = domain.StatusRejected
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("identity", string(target)).
		Bool("approved", approve).Msg("admission decided")
	return nil
}

func (r *roomImpl) Evict(by, target domain.Identity) error {
	if by != r.room.Host {
		return domain.AdmissionError("evict", by, domain.ErrNotHost)
	}
	if target == r.room.Host {
		return domain.AdmissionError("evict", target, domain.ErrCannotEvictHost)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeParticipantLocked(target) {
		return domain.AdmissionError("evict", target, domain.ErrNotParticipant)
	}
	r.status[target] = domain.StatusEvicted
	delete(r.departed, target)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("identity", string(target)).Msg("member evicted")
	return nil
}

func (r *roomImpl) Status(id domain.Identity) domain.AdmissionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[id]
}

func (r *roomImpl) IsParticipant(id domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.participants, id)
}

func (r *roomImpl) Participants() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.participants)
}

func (r *roomImpl) Pending() []domain.JoinRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.pending)
}

func (r *roomImpl) SessionOf(id domain.Identity) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.byIdentity[id]
	return ms, ok
}

func (r *roomImpl) SendTo(id domain.Identity, env protocol.Envelope) error {
	r.mu.RLock()
	ms, ok := r.byIdentity[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotConnected
	}
	return ms.Signal().TrySend(env)
}

// Broadcast delivers env to every connected participant; pending connections never see it.
func (r *roomImpl) Broadcast(env protocol.Envelope) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, id := range r.participants {
		ms, ok := r.byIdentity[id]
		if !ok {
			continue
		}
		if err := ms.Signal().TrySend(env); err != nil {
			res.Dropped = append(res.Dropped, ms)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("type", string(env.Type)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) AppendChat(msg domain.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, msg)
	if limit := r.opts.HistoryLimit; limit > 0 && len(r.history) > limit {
		r.history = slices.Clone(r.history[len(r.history)-limit:])
	}
}

func (r *roomImpl) LoadHistory(load func() ([]domain.ChatMessage, error)) ([]domain.ChatMessage, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.loaded {
		return r.ChatHistory(), nil
	}
	stored, err := load()
	if err != nil {
		return r.ChatHistory(), err
	}
	r.loaded = true

	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.history))
	for _, m := range r.history {
		seen[m.OriginID] = true
	}
	merged := make([]domain.ChatMessage, 0, len(stored)+len(r.history))
	for _, m := range stored {
		if !seen[m.OriginID] {
			merged = append(merged, m)
		}
	}
	r.history = append(merged, r.history...)
	if limit := r.opts.HistoryLimit; limit > 0 && len(r.history) > limit {
		r.history = slices.Clone(r.history[len(r.history)-limit:])
	}
	return slices.Clone(r.history), nil
}

func (r *roomImpl) ChatHistory() []domain.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.history)
}

func (r *roomImpl) addParticipantLocked(id domain.Identity) bool {
	if slices.Contains(r.participants, id) {
		return false
	}
	r.participants = append(r.participants, id)
	return true
}

func (r *roomImpl) removeParticipantLocked(id domain.Identity) bool {
	i := slices.Index(r.participants, id)
	if i < 0 {
		return false
	}
	r.participants = slices.Delete(r.participants, i, i+1)
	return true
}

func (r *roomImpl) removePendingLocked(id domain.Identity) bool {
	i := slices.IndexFunc(r.pending, func(j domain.JoinRequest) bool { return j.Identity == id })
	if i < 0 {
		return false
	}
	r.pending = slices.Delete(r.pending, i, i+1)
	return true
}
