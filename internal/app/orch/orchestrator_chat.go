package orch

import (
	"context"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleChat(ctx context.Context, room core.RoomService, sess core.MemberSession, env protocol.Envelope) {
	sender := sess.Identity()
	if !room.IsParticipant(sender) {
		return
	}
	msg, err := domain.NewChatMessage(sender, env.Chat.Text, o.Opts.MaxChatLength)
	if err != nil {
		o.send(room, sess, protocol.Error(err.Error()))
		return
	}
	// keep the client's id so its local echo dedups against the broadcast
	if env.Chat.OriginID != "" {
		msg.OriginID = env.Chat.OriginID
	}
	if !env.Chat.SentAt.IsZero() {
		msg.SentAt = env.Chat.SentAt
	}

	room.AppendChat(msg)
	if o.Archive != nil {
		if err := o.Archive.AppendChat(ctx, room.Room().ID, msg); err != nil {
			log.Error().Str("module", "orch").Err(err).Str("room", string(room.Room().ID)).Msg("archive chat failed")
		}
	}
	o.broadcast(room, protocol.Chat(msg))
}

// sendHistory gives a newly admitted member the backlog. The archive is read
// once per live room.
func (o *Orchestrator) sendHistory(ctx context.Context, room core.RoomService, sess core.MemberSession) {
	history := room.ChatHistory()
	if o.Archive != nil {
		var err error
		history, err = room.LoadHistory(func() ([]domain.ChatMessage, error) {
			return o.Archive.ListChat(ctx, room.Room().ID, o.Opts.HistoryLimit)
		})
		if err != nil {
			log.Error().Str("module", "orch").Err(err).Str("room", string(room.Room().ID)).Msg("load chat history failed")
		}
	}
	o.send(room, sess, protocol.ChatHistory(history))
}
