package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

var (
	ErrChatEmpty   = errors.New("chat message empty")
	ErrChatTooLong = errors.New("chat message too long")
)

type ChatMessage struct {
	Sender   Identity  `json:"sender"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
	OriginID string    `json:"origin_id"`
}

// NewOriginID returns a sortable, process-monotonic id used to deduplicate echoes.
func NewOriginID() string {
	return ulid.Make().String()
}

// NewChatMessage validates text and stamps a fresh origin id.
func NewChatMessage(sender Identity, text string, maxLen int) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrChatEmpty
	}
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		return ChatMessage{}, ErrChatTooLong
	}
	return ChatMessage{
		Sender:   sender,
		Text:     text,
		SentAt:   time.Now().UTC(),
		OriginID: NewOriginID(),
	}, nil
}
