package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("a") {
		t.Error("third attempt inside the window should be blocked")
	}
	if !rl.Allow("b") {
		t.Error("limits are per identity")
	}
	now = now.Add(1100 * time.Millisecond)
	if !rl.Allow("a") {
		t.Error("window should have slid")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)
	for range 100 {
		if !rl.Allow("a") {
			t.Fatal("zero limit disables limiting")
		}
	}
}

func TestLimitedFrameAnsweredWithError(t *testing.T) {
	reg := app.NewRegistry()
	reg.Bind("r1", core.NewMemberSession("s1", "g@x", nil), func() {})
	chat := NewRateLimiter(1, time.Minute)
	ctl := NewSignalWSController(&orch.Orchestrator{Registry: reg}, Options{}, nil, chat)
	chat.Allow("g@x")

	msg, err := domain.NewChatMessage("g@x", "again", 100)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := protocol.JSON{}.Marshal(protocol.Chat(msg))
	if err != nil {
		t.Fatal(err)
	}
	c := &WsSignalConn{codec: protocol.JSON{}, send: make(chan []byte, 1)}
	ctl.handleFrame(context.Background(), "s1", c, frame)

	var reply protocol.Envelope
	if err := (protocol.JSON{}).Unmarshal(<-c.send, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Type != protocol.TypeError || reply.Error != domain.ErrRateLimited.Error() {
		t.Errorf("reply = %+v", reply)
	}

	if err := ctl.allow("gone", protocol.Envelope{Type: protocol.TypeChat}); !errors.Is(err, domain.ErrClosed) {
		t.Errorf("unknown session: %v", err)
	}
}
