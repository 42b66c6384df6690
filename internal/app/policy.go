package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/core"
)

type BackpressureAction int

const (
	// NoAction keeps the member; the frame it missed is lost.
	NoAction BackpressureAction = iota
	// DisconnectMember drops the slow connection; the client reconnects and rehydrates.
	DisconnectMember
)

type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
	// Forget clears what the policy remembers about a closed session.
	Forget(sid core.SessionID)
}

// SimplePolicy lets a member drop Tolerance frames before it is disconnected.
// The zero value disconnects on the first dropped frame.
type SimplePolicy struct {
	Tolerance int

	mu      sync.Mutex
	dropped map[core.SessionID]int
}

func (p *SimplePolicy) OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction {
	if p.Tolerance <= 0 {
		return DisconnectMember
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dropped == nil {
		p.dropped = make(map[core.SessionID]int)
	}
	p.dropped[member.ID()]++
	if p.dropped[member.ID()] <= p.Tolerance {
		return NoAction
	}
	delete(p.dropped, member.ID())
	return DisconnectMember
}

func (p *SimplePolicy) Forget(sid core.SessionID) {
	p.mu.Lock()
	delete(p.dropped, sid)
	p.mu.Unlock()
}
