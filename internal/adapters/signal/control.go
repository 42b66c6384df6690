package signal

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// allow applies the per-identity limits to the message kinds a guest can spam.
func (ctl *SignalWSController) allow(sid core.SessionID, env protocol.Envelope) error {
	_, sess, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		return domain.ErrClosed
	}
	var rl *RateLimiter
	switch env.Type {
	case protocol.TypeJoinRequest:
		rl = ctl.JoinLimiter
	case protocol.TypeChat:
		rl = ctl.ChatLimiter
	}
	if rl == nil || rl.Allow(sess.Identity()) {
		return nil
	}
	log.Warn().Str("module", "signal").Str("identity", string(sess.Identity())).
		Str("type", string(env.Type)).Msg("rate limited")
	return domain.ErrRateLimited
}
