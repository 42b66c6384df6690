package orch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/core/mocks"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"go.uber.org/mock/gomock"
)

type recSignal struct {
	mu      sync.Mutex
	sent    []protocol.Envelope
	flushed bool
	closed  bool
}

func (s *recSignal) TrySend(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.flushed {
		return errors.New("closed")
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *recSignal) CloseAfterFlush() {
	s.mu.Lock()
	s.flushed = true
	s.mu.Unlock()
}

func (s *recSignal) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *recSignal) ofType(t protocol.Type) []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range s.sent {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *recSignal) last(t protocol.Type) (protocol.Envelope, bool) {
	all := s.ofType(t)
	if len(all) == 0 {
		return protocol.Envelope{}, false
	}
	return all[len(all)-1], true
}

const (
	roomID = domain.RoomID("room-1")
	hostID = domain.Identity("h@example.com")
)

type harness struct {
	t    *testing.T
	o    *Orchestrator
	sigs map[domain.Identity]*recSignal
	sids map[domain.Identity]core.SessionID
	n    int
}

func newHarness(t *testing.T, opts core.RoomOptions) (*harness, *mocks.MockChatArchive) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().ValidateMeeting(gomock.Any(), roomID).
		Return(&domain.Room{ID: roomID, Name: "standup", Host: hostID}, nil).AnyTimes()
	dir.EXPECT().ValidateMeeting(gomock.Any(), gomock.Not(roomID)).
		Return(nil, domain.ErrRoomNotFound).AnyTimes()
	archive := mocks.NewMockChatArchive(ctrl)
	archive.EXPECT().ListChat(gomock.Any(), roomID, gomock.Any()).Return(nil, nil).AnyTimes()

	o := &Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewRoomManager(opts),
		Policy:    &app.SimplePolicy{},
		Directory: dir,
		Archive:   archive,
		Opts:      Options{MaxChatLength: 100, HistoryLimit: 50},
	}
	return &harness{t: t, o: o, sigs: map[domain.Identity]*recSignal{}, sids: map[domain.Identity]core.SessionID{}}, archive
}

func (h *harness) connect(id domain.Identity) *recSignal {
	h.t.Helper()
	h.n++
	sig := &recSignal{}
	sid := core.SessionID(string(id) + "#" + string(rune('a'+h.n)))
	sess := core.NewMemberSession(sid, id, sig)
	if err := h.o.Connect(context.Background(), roomID, sess, func() {}); err != nil {
		h.t.Fatalf("Connect(%s) failed: %v", id, err)
	}
	h.sigs[id] = sig
	h.sids[id] = sid
	return sig
}

func (h *harness) send(id domain.Identity, env protocol.Envelope) {
	h.o.HandleMessage(context.Background(), h.sids[id], env)
}

func (h *harness) room() core.RoomService {
	r, ok := h.o.Rooms.Get(roomID)
	if !ok {
		h.t.Fatal("room not live")
	}
	return r
}

func TestHostIsAdmittedOnConnect(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	sig := h.connect(hostID)

	w, ok := sig.last(protocol.TypeWelcome)
	if !ok || w.Status != domain.StatusApproved || w.Host != hostID {
		t.Fatalf("welcome = %+v", w)
	}
	r, _ := sig.last(protocol.TypeRoster)
	if !slices.Equal(r.Participants, []domain.Identity{hostID}) {
		t.Errorf("roster = %v", r.Participants)
	}
}

func TestConnectUnknownRoom(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	sess := core.NewMemberSession("x", "g@x", &recSignal{})
	err := h.o.Connect(context.Background(), "nope", sess, func() {})
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestApprovedGuestJoinsRoster(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	hostSig := h.connect(hostID)
	g1 := h.connect("g1@x")

	if w, _ := g1.last(protocol.TypeWelcome); w.Status != domain.StatusUnknown {
		t.Errorf("guest welcome status = %q", w.Status)
	}
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})

	req, ok := hostSig.last(protocol.TypeJoinRequest)
	if !ok || req.Identity != "g1@x" || req.RequestedAt == nil {
		t.Fatalf("host join-request = %+v", req)
	}
	if len(g1.ofType(protocol.TypeRoster)) != 0 {
		t.Error("pending guest must not receive rosters")
	}

	h.send(hostID, protocol.Approval("g1@x", domain.StatusApproved, "", ""))

	a, ok := g1.last(protocol.TypeApproval)
	if !ok || a.Status != domain.StatusApproved || a.By != hostID {
		t.Fatalf("approval = %+v", a)
	}
	want := []domain.Identity{hostID, "g1@x"}
	for _, sig := range []*recSignal{hostSig, g1} {
		r, _ := sig.last(protocol.TypeRoster)
		if !slices.Equal(r.Participants, want) {
			t.Errorf("roster = %v, want %v", r.Participants, want)
		}
	}
	if len(g1.ofType(protocol.TypeChatHistory)) != 1 {
		t.Error("approved guest should get chat history")
	}
}

func TestRejectedGuestNeverInRoster(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	hostSig := h.connect(hostID)
	g2 := h.connect("g2@x")
	h.send("g2@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.send(hostID, protocol.Approval("g2@x", domain.StatusRejected, "room full", ""))

	a, ok := g2.last(protocol.TypeApproval)
	if !ok || a.Status != domain.StatusRejected || a.Reason != "room full" {
		t.Fatalf("rejection = %+v", a)
	}
	if !g2.flushed {
		t.Error("rejected connection should be closed after flush")
	}
	for _, r := range hostSig.ofType(protocol.TypeRoster) {
		if slices.Contains(r.Participants, "g2@x") {
			t.Fatalf("rejected guest appeared in roster %v", r.Participants)
		}
	}
}

func TestNonHostDecisionIgnored(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	h.connect(hostID)
	h.connect("g1@x")
	g2 := h.connect("g2@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.send(hostID, protocol.Approval("g1@x", domain.StatusApproved, "", ""))
	h.send("g2@x", protocol.Envelope{Type: protocol.TypeJoinRequest})

	h.send("g1@x", protocol.Approval("g2@x", domain.StatusApproved, "", ""))
	if _, ok := g2.last(protocol.TypeApproval); ok {
		t.Error("approval from a non-host must be dropped")
	}
	if h.room().IsParticipant("g2@x") {
		t.Error("non-host approval admitted a guest")
	}
}

func TestKickNotifiesAndBlocksRejoin(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	hostSig := h.connect(hostID)
	g1 := h.connect("g1@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.send(hostID, protocol.Approval("g1@x", domain.StatusApproved, "", ""))

	h.send(hostID, protocol.Envelope{Type: protocol.TypeKick, Identity: "g1@x", Reason: "spam"})

	k, ok := g1.last(protocol.TypeKicked)
	if !ok || k.Reason != "spam" || k.By != hostID {
		t.Fatalf("kicked = %+v", k)
	}
	if !g1.flushed {
		t.Error("kicked connection should close after flush")
	}
	r, _ := hostSig.last(protocol.TypeRoster)
	if !slices.Equal(r.Participants, []domain.Identity{hostID}) {
		t.Errorf("roster after kick = %v", r.Participants)
	}
	if pk, ok := hostSig.last(protocol.TypeParticipantKicked); !ok || pk.Identity != "g1@x" {
		t.Errorf("participant-kicked = %+v", pk)
	}

	h.o.Disconnect(h.sids["g1@x"])
	again := h.connect("g1@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	a, ok := again.last(protocol.TypeApproval)
	if !ok || a.Status != domain.StatusRejected {
		t.Errorf("rejoin after kick = %+v, want rejection", a)
	}
}

func TestKickFromGuestIgnored(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	h.connect(hostID)
	g1 := h.connect("g1@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.send(hostID, protocol.Approval("g1@x", domain.StatusApproved, "", ""))

	h.send("g1@x", protocol.Envelope{Type: protocol.TypeKick, Identity: hostID})
	if !h.room().IsParticipant(hostID) || g1.flushed {
		t.Error("guest kick must have no effect")
	}
}

func TestSignalRelayIsAddressed(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	hostSig := h.connect(hostID)
	g1 := h.connect("g1@x")
	g2 := h.connect("g2@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.send(hostID, protocol.Approval("g1@x", domain.StatusApproved, "", ""))
	h.send("g2@x", protocol.Envelope{Type: protocol.TypeJoinRequest})

	h.send(hostID, protocol.Envelope{Type: protocol.TypeOffer, From: "spoofed", To: "g1@x", SDP: "v=0"})
	offers := g1.ofType(protocol.TypeOffer)
	if len(offers) != 1 || offers[0].From != hostID {
		t.Fatalf("g1 offers = %+v", offers)
	}
	if len(hostSig.ofType(protocol.TypeOffer)) != 0 {
		t.Error("offer echoed to sender")
	}

	h.send(hostID, protocol.Envelope{Type: protocol.TypeOffer, To: "g2@x", SDP: "v=0"})
	h.send("g2@x", protocol.Envelope{Type: protocol.TypeOffer, To: hostID, SDP: "v=0"})
	if len(g2.ofType(protocol.TypeOffer)) != 0 || len(hostSig.ofType(protocol.TypeOffer)) != 0 {
		t.Error("signaling with a pending identity must be dropped")
	}
}

func TestChatIsBroadcastAndArchived(t *testing.T) {
	h, archive := newHarness(t, core.RoomOptions{HistoryLimit: 10})
	archive.EXPECT().AppendChat(gomock.Any(), roomID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.RoomID, m domain.ChatMessage) error {
			if m.Sender != hostID || m.OriginID != "o-1" {
				t.Errorf("archived %+v", m)
			}
			return nil
		}).Times(1)

	hostSig := h.connect(hostID)
	g2 := h.connect("g2@x")
	h.send("g2@x", protocol.Envelope{Type: protocol.TypeJoinRequest})

	h.send(hostID, protocol.Chat(domain.ChatMessage{Sender: "spoofed", Text: "hello", OriginID: "o-1"}))
	got, ok := hostSig.last(protocol.TypeChat)
	if !ok || got.Chat.Sender != hostID || got.Chat.SentAt.IsZero() {
		t.Fatalf("echo = %+v", got)
	}
	if len(g2.ofType(protocol.TypeChat)) != 0 {
		t.Error("pending identity saw chat")
	}

	h.send("g2@x", protocol.Chat(domain.ChatMessage{Text: "let me in"}))
	if len(h.room().ChatHistory()) != 1 {
		t.Error("chat from a non-participant must be dropped")
	}
}

func TestPendingDisconnectNotifiesHost(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	hostSig := h.connect(hostID)
	h.connect("g1@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.o.Disconnect(h.sids["g1@x"])

	c, ok := hostSig.last(protocol.TypeJoinCancelled)
	if !ok || c.Identity != "g1@x" {
		t.Errorf("join-cancelled = %+v", c)
	}
}

func TestHostReconnectGetsPendingRequests(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{ReadmitWindow: time.Minute})
	h.connect(hostID)
	h.connect("g1@x")
	h.send("g1@x", protocol.Envelope{Type: protocol.TypeJoinRequest})
	h.o.Disconnect(h.sids[hostID])

	back := h.connect(hostID)
	if req, ok := back.last(protocol.TypeJoinRequest); !ok || req.Identity != "g1@x" {
		t.Errorf("replayed join-request = %+v", req)
	}
}

func TestSweepStopsIdleRooms(t *testing.T) {
	h, _ := newHarness(t, core.RoomOptions{})
	h.connect(hostID)
	h.o.Disconnect(h.sids[hostID])

	stopped := h.o.Rooms.Sweep(time.Now().Add(time.Hour), time.Minute)
	if !slices.Equal(stopped, []domain.RoomID{roomID}) {
		t.Errorf("stopped = %v", stopped)
	}
	if _, ok := h.o.Rooms.Get(roomID); ok {
		t.Error("room still live after sweep")
	}
}
