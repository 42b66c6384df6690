// Package chat keeps the client's ordered chat log.
package chat

import (
	"github.com/dkeye/Meet/internal/domain"
)

// Log holds messages in arrival order, deduplicated by OriginID.
// Not safe for concurrent use.
type Log struct {
	local   domain.Identity
	maxLen  int
	msgs    []domain.ChatMessage
	origins map[string]struct{}
}

func NewLog(local domain.Identity, maxLen int) *Log {
	return &Log{local: local, maxLen: maxLen, origins: make(map[string]struct{})}
}

// Compose validates text and appends the local message before the server echoes it.
func (l *Log) Compose(text string) (domain.ChatMessage, error) {
	msg, err := domain.NewChatMessage(l.local, text, l.maxLen)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	l.add(msg)
	return msg, nil
}

// Receive appends a live message. Echoes of our own messages and repeats
// are dropped.
func (l *Log) Receive(msg domain.ChatMessage) bool {
	if msg.Sender == l.local {
		return false
	}
	return l.add(msg)
}

// Merge appends history after (re)admission and returns what was new.
func (l *Log) Merge(history []domain.ChatMessage) []domain.ChatMessage {
	var added []domain.ChatMessage
	for _, m := range history {
		if l.add(m) {
			added = append(added, m)
		}
	}
	return added
}

func (l *Log) add(msg domain.ChatMessage) bool {
	if msg.OriginID != "" {
		if _, dup := l.origins[msg.OriginID]; dup {
			return false
		}
		l.origins[msg.OriginID] = struct{}{}
	}
	l.msgs = append(l.msgs, msg)
	return true
}

func (l *Log) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *Log) Len() int { return len(l.msgs) }
