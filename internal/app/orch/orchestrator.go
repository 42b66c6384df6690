package orch

import (
	"context"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

type Options struct {
	MaxChatLength int
	HistoryLimit  int
	RoomGrace     time.Duration
}

// Orchestrator is the coordination endpoint: it fans client messages in,
// applies them to the owning room, and fans the results out.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     core.RoomManager
	Policy    app.Policy
	Directory core.Directory
	Archive   core.ChatArchive
	Opts      Options
}

// Connect validates the room, attaches the session and greets it. The host
// is admitted here, before any message from it is read.
func (o *Orchestrator) Connect(
	ctx context.Context,
	roomID domain.RoomID,
	sess core.MemberSession,
	cancel context.CancelFunc,
) error {
	meta, err := o.Directory.ValidateMeeting(ctx, roomID)
	if err != nil {
		return err
	}

	var room core.RoomService
	var res core.AttachResult
	for {
		room = o.Rooms.GetOrCreate(meta)
		res = room.Attach(sess)
		// a sweep may have stopped the room between lookup and attach
		if cur, ok := o.Rooms.Get(roomID); ok && cur == room {
			break
		}
		room.Detach(sess.ID())
	}
	o.Registry.Bind(roomID, sess, cancel)

	if old := res.Superseded; old != nil {
		log.Info().Str("module", "orch").Str("room", string(roomID)).Str("identity", string(sess.Identity())).
			Str("old_sid", string(old.ID())).Msg("session superseded")
		old.Signal().Close()
		o.Registry.Cancel(old.ID())
		if res.DroppedParticipant {
			o.broadcastRoster(room)
		}
	}

	id := sess.Identity()
	if id != room.Host() {
		o.send(room, sess, protocol.Welcome(roomID, id, room.Host(), room.Status(id)))
		return nil
	}

	room.AdmitHost(id)
	o.send(room, sess, protocol.Welcome(roomID, id, room.Host(), domain.StatusApproved))
	o.broadcastRoster(room)
	o.sendHistory(ctx, room, sess)
	// requests made while the host was away
	for _, req := range room.Pending() {
		o.send(room, sess, protocol.JoinRequest(req))
	}
	return nil
}

// Disconnect is called once per connection when its read pump ends.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	roomID, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if o.Policy != nil {
		o.Policy.Forget(sid)
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	res := room.Detach(sid)
	if !res.Current {
		return
	}
	if res.WasParticipant {
		o.broadcastRoster(room)
	}
	if res.WasPending {
		o.sendTo(room, room.Host(), protocol.Envelope{Type: protocol.TypeJoinCancelled, Identity: res.Identity})
	}
}

// HandleMessage dispatches one decoded envelope from sid.
func (o *Orchestrator) HandleMessage(ctx context.Context, sid core.SessionID, env protocol.Envelope) {
	roomID, sess, ok := o.Registry.Lookup(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}

	switch env.Type {
	case protocol.TypeJoinRequest:
		o.handleJoinRequest(ctx, room, sess)
	case protocol.TypeApproval:
		o.handleDecision(ctx, room, sess, env)
	case protocol.TypeKick:
		o.handleKick(room, sess, env)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		o.relaySignal(room, sess, env)
	case protocol.TypeChat:
		o.handleChat(ctx, room, sess, env)
	case protocol.TypeLeave:
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("leave")
		sess.Signal().CloseAfterFlush()
	case protocol.TypePing:
		o.send(room, sess, protocol.Envelope{Type: protocol.TypePong})
	default:
		log.Warn().Str("module", "orch").Str("type", string(env.Type)).Msg("unexpected message from client")
		o.send(room, sess, protocol.Error("unexpected message type"))
	}
}

// RunJanitor stops rooms that stayed empty for the grace period.
func (o *Orchestrator) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.Rooms.Sweep(now, o.Opts.RoomGrace)
		}
	}
}

func (o *Orchestrator) send(room core.RoomService, sess core.MemberSession, env protocol.Envelope) {
	if err := sess.Signal().TrySend(env); err != nil {
		o.onDropped(room, []core.MemberSession{sess})
	}
}

func (o *Orchestrator) sendTo(room core.RoomService, id domain.Identity, env protocol.Envelope) {
	if sess, ok := room.SessionOf(id); ok {
		o.send(room, sess, env)
	}
}

func (o *Orchestrator) broadcast(room core.RoomService, env protocol.Envelope) {
	res := room.Broadcast(env)
	o.onDropped(room, res.Dropped)
}

func (o *Orchestrator) broadcastRoster(room core.RoomService) {
	o.broadcast(room, protocol.Roster(room.Participants()))
}

func (o *Orchestrator) onDropped(room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.DisconnectMember:
			log.Warn().Str("module", "orch").Str("room", string(room.Room().ID)).
				Str("identity", string(slow.Identity())).Msg("slow member disconnected")
			slow.Signal().Close()
			o.Registry.Cancel(slow.ID())
		case app.NoAction:
			log.Debug().Str("module", "orch").Str("room", string(room.Room().ID)).
				Str("identity", string(slow.Identity())).Msg("slow member tolerated")
		}
	}
}
