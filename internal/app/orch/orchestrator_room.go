package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

const reasonKickedBefore = "removed by host"

func (o *Orchestrator) handleJoinRequest(ctx context.Context, room core.RoomService, sess core.MemberSession) {
	id := sess.Identity()
	out, err := room.RequestJoin(id, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrEvicted) {
			o.send(room, sess, protocol.Approval(id, domain.StatusRejected, reasonKickedBefore, room.Host()))
			sess.Signal().CloseAfterFlush()
			return
		}
		log.Warn().Str("module", "orch").Err(err).Msg("join request refused")
		return
	}

	switch out {
	case core.JoinQueued:
		log.Info().Str("module", "orch").Str("room", string(room.Room().ID)).Str("identity", string(id)).Msg("join request queued")
		for _, req := range room.Pending() {
			if req.Identity == id {
				o.sendTo(room, room.Host(), protocol.JoinRequest(req))
			}
		}
	case core.JoinReadmitted, core.JoinAlreadyParticipant:
		o.send(room, sess, protocol.Approval(id, domain.StatusApproved, "", room.Host()))
		if out == core.JoinReadmitted {
			o.broadcastRoster(room)
		} else {
			o.send(room, sess, protocol.Roster(room.Participants()))
		}
		o.sendHistory(ctx, room, sess)
	case core.JoinIgnored:
	}
}

// handleDecision applies a host approval or rejection. Anything else from a
// non-host, or on an identity that is not pending, is dropped.
func (o *Orchestrator) handleDecision(ctx context.Context, room core.RoomService, sess core.MemberSession, env protocol.Envelope) {
	approve := env.Status == domain.StatusApproved
	if err := room.Decide(sess.Identity(), env.Identity, approve); err != nil {
		log.Debug().Str("module", "orch").Err(err).Str("by", string(sess.Identity())).Msg("decision ignored")
		return
	}

	target, online := room.SessionOf(env.Identity)
	if !approve {
		if online {
			o.send(room, target, protocol.Approval(env.Identity, domain.StatusRejected, env.Reason, sess.Identity()))
			target.Signal().CloseAfterFlush()
		}
		return
	}

	if online {
		o.send(room, target, protocol.Approval(env.Identity, domain.StatusApproved, "", sess.Identity()))
	}
	o.broadcastRoster(room)
	if online {
		o.sendHistory(ctx, room, target)
	}
}

func (o *Orchestrator) handleKick(room core.RoomService, sess core.MemberSession, env protocol.Envelope) {
	by := sess.Identity()
	if err := room.Evict(by, env.Identity); err != nil {
		log.Debug().Str("module", "orch").Err(err).Str("by", string(by)).Msg("kick ignored")
		return
	}
	log.Info().Str("module", "orch").Str("room", string(room.Room().ID)).Str("identity", string(env.Identity)).
		Str("reason", env.Reason).Msg("participant kicked")

	if target, ok := room.SessionOf(env.Identity); ok {
		o.send(room, target, protocol.Kicked(env.Identity, env.Reason, by))
		target.Signal().CloseAfterFlush()
	}
	o.broadcastRoster(room)
	o.broadcast(room, protocol.Envelope{
		Type:     protocol.TypeParticipantKicked,
		Identity: env.Identity,
		Reason:   env.Reason,
		By:       by,
	})
}
