package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/session"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/mattn/go-shellwords"
	"github.com/pion/webrtc/v4"
)

// commander is the part of session.Session the prompt drives.
type commander interface {
	SendChat(text string) error
	Approve(id domain.Identity) error
	Reject(id domain.Identity, reason string) error
	Kick(id domain.Identity, reason string) error
	SetMuted(kind webrtc.RTPCodecType, muted bool) error
	SetPeerMuted(id domain.Identity, muted bool) error
	Roster() ([]domain.Identity, error)
	Chat() ([]domain.ChatMessage, error)
	Stats() map[domain.Identity]media.Counters
	Status() session.Status
}

var errUsage = errors.New("usage")

type repl struct {
	s   commander
	out io.Writer
}

const helpText = `commands:
  say <text>              send a chat message
  approve <identity>      admit a waiting participant (host)
  reject <identity> [why] turn a waiting participant away (host)
  kick <identity> [why]   remove a participant (host)
  mute|unmute audio|video stop or resume sending
  mute-peer <identity>    stop playing or recording one participant
  unmute-peer <identity>  resume them
  roster                  list participants
  chat                    print the chat log
  stats                   packets received per peer
  status                  current session status
  leave                   leave the meeting`

// exec runs one prompt line and reports whether the user asked to leave.
func (r *repl) exec(line string) (bool, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
	case "say":
		if len(rest) == 0 {
			return false, fmt.Errorf("%w: say <text>", errUsage)
		}
		return false, r.s.SendChat(strings.Join(rest, " "))
	case "approve":
		if len(rest) != 1 {
			return false, fmt.Errorf("%w: approve <identity>", errUsage)
		}
		return false, r.s.Approve(domain.Identity(rest[0]))
	case "reject", "kick":
		if len(rest) == 0 {
			return false, fmt.Errorf("%w: %s <identity> [reason]", errUsage, cmd)
		}
		id, reason := domain.Identity(rest[0]), strings.Join(rest[1:], " ")
		if cmd == "reject" {
			return false, r.s.Reject(id, reason)
		}
		return false, r.s.Kick(id, reason)
	case "mute", "unmute":
		if len(rest) != 1 {
			return false, fmt.Errorf("%w: %s audio|video", errUsage, cmd)
		}
		kind := webrtc.NewRTPCodecType(rest[0])
		if kind == 0 {
			return false, fmt.Errorf("unknown media kind %q", rest[0])
		}
		return false, r.s.SetMuted(kind, cmd == "mute")
	case "mute-peer", "unmute-peer":
		if len(rest) != 1 {
			return false, fmt.Errorf("%w: %s <identity>", errUsage, cmd)
		}
		return false, r.s.SetPeerMuted(domain.Identity(rest[0]), cmd == "mute-peer")
	case "roster":
		ids, err := r.s.Roster()
		if err != nil {
			return false, err
		}
		renderRoster(r.out, ids)
	case "chat":
		msgs, err := r.s.Chat()
		if err != nil {
			return false, err
		}
		for _, m := range msgs {
			printChat(r.out, m)
		}
	case "stats":
		renderStats(r.out, r.s.Stats())
	case "status":
		fmt.Fprintln(r.out, r.s.Status())
	case "leave", "exit", "quit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}
