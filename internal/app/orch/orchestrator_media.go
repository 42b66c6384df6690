package orch

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// relaySignal forwards offer/answer/ice between two participants. The sender
// field is always overwritten with the authenticated identity.
func (o *Orchestrator) relaySignal(room core.RoomService, sess core.MemberSession, env protocol.Envelope) {
	from := sess.Identity()
	if !room.IsParticipant(from) || !room.IsParticipant(env.To) || env.To == from {
		log.Debug().Str("module", "orch").Str("type", string(env.Type)).Str("from", string(from)).
			Str("to", string(env.To)).Msg("signal dropped")
		return
	}
	env.From = from
	if err := room.SendTo(env.To, env); err != nil {
		if target, ok := room.SessionOf(env.To); ok {
			o.onDropped(room, []core.MemberSession{target})
		}
	}
}
