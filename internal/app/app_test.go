package app

import (
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

func TestRegistryUnbindOnce(t *testing.T) {
	r := NewRegistry()
	sess := core.NewMemberSession("s1", "a@x", nil)
	canceled := false
	r.Bind("room", sess, func() { canceled = true })

	room, got, ok := r.Lookup("s1")
	if !ok || room != "room" || got != sess {
		t.Fatalf("Lookup = %q %v %v", room, got, ok)
	}
	if !r.Cancel("s1") || !canceled {
		t.Error("Cancel should run the pump cancel func")
	}
	if room, ok := r.Unbind("s1"); !ok || room != "room" {
		t.Errorf("first Unbind = %q %v", room, ok)
	}
	if _, ok := r.Unbind("s1"); ok {
		t.Error("second Unbind should report nothing")
	}
	if r.Cancel("s1") {
		t.Error("Cancel after Unbind")
	}
}

func TestRoomManagerSweepsIdleRooms(t *testing.T) {
	m := NewRoomManager(core.RoomOptions{})
	meta := domain.NewRoom("standup", "h@x")
	room := m.GetOrCreate(meta)
	if again := m.GetOrCreate(meta); again != room {
		t.Fatal("GetOrCreate should return the live room")
	}
	if len(m.List()) != 1 {
		t.Fatalf("List = %v", m.List())
	}

	if stopped := m.Sweep(time.Now(), time.Hour); len(stopped) != 0 {
		t.Errorf("fresh room swept: %v", stopped)
	}
	stopped := m.Sweep(time.Now().Add(2*time.Hour), time.Hour)
	if len(stopped) != 1 || stopped[0] != meta.ID {
		t.Fatalf("Sweep = %v", stopped)
	}
	if _, ok := m.Get(meta.ID); ok {
		t.Error("swept room still live")
	}
}

func TestSimplePolicyTolerance(t *testing.T) {
	slow := core.NewMemberSession("s1", "g@x", nil)
	other := core.NewMemberSession("s2", "h@x", nil)

	strict := &SimplePolicy{}
	if strict.OnBackPressure(nil, slow) != DisconnectMember {
		t.Error("zero tolerance should disconnect at once")
	}

	p := &SimplePolicy{Tolerance: 2}
	for i := range 2 {
		if got := p.OnBackPressure(nil, slow); got != NoAction {
			t.Fatalf("drop %d: action = %d, want NoAction", i+1, got)
		}
	}
	if p.OnBackPressure(nil, other) != NoAction {
		t.Error("drops are counted per session")
	}
	if p.OnBackPressure(nil, slow) != DisconnectMember {
		t.Error("third drop should disconnect")
	}

	p.OnBackPressure(nil, other)
	p.Forget("s2")
	if p.OnBackPressure(nil, other) != NoAction {
		t.Error("Forget should reset the count")
	}
}
