// Package domain contains entities without transport, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxIdentityLen = 254
	MaxRoomNameLen = 64
)

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity names a participant uniquely within a room (an email address in practice).
type Identity string

// ParseIdentity trims and validates a raw identity taken from a connection or request.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrIdentityEmpty
	}
	if utf8.RuneCountInString(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(s), nil
}

func (id Identity) String() string { return string(id) }

// Profile is what the profile collaborator knows about an identity.
type Profile struct {
	Identity    Identity `json:"identity"`
	DisplayName string   `json:"display_name"`
}
