package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/client/transport"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakeTransport struct {
	events     chan transport.Event
	sent       chan protocol.Envelope
	connectErr error

	mu     sync.Mutex
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan transport.Event, 64),
		sent:   make(chan protocol.Envelope, 64),
	}
}

func (f *fakeTransport) Connect(context.Context) error { return f.connectErr }

func (f *fakeTransport) Send(env protocol.Envelope) error {
	f.sent <- env
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) deliver(env protocol.Envelope) { f.events <- transport.Message{Env: env} }

type fakePC struct {
	mu      sync.Mutex
	closed  bool
	onTrack func(media.RTPSource)
}

func (p *fakePC) AddTrack(webrtc.TrackLocal) (mesh.TrackSender, error) { return nil, nil }
func (p *fakePC) CreateOffer() (string, error)                         { return "offer", nil }
func (p *fakePC) AcceptOffer(string) (string, error)                   { return "answer", nil }
func (p *fakePC) AcceptAnswer(string) error                            { return nil }
func (p *fakePC) AddICECandidate(webrtc.ICECandidateInit) error        { return nil }
func (p *fakePC) OnICECandidate(func(webrtc.ICECandidateInit))         {}
func (p *fakePC) OnConnectionStateChange(func(webrtc.PeerConnectionState)) {
}

func (p *fakePC) OnTrack(fn func(media.RTPSource)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *fakePC) remoteTrack(src media.RTPSource) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(src)
}

func (p *fakePC) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePC) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeFactory struct {
	mu   sync.Mutex
	made []*fakePC
}

func (f *fakeFactory) NewPeerConnection() (mesh.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pc := &fakePC{}
	f.made = append(f.made, pc)
	return pc, nil
}

func (f *fakeFactory) all() []*fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePC(nil), f.made...)
}

type fakeAcquirer struct{ err error }

func (a fakeAcquirer) Acquire(context.Context, media.Request) (*media.LocalStream, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &media.LocalStream{}, nil
}

type harness struct {
	s       *Session
	tr      *fakeTransport
	factory *fakeFactory
	result  chan error
	cancel  context.CancelFunc
}

func start(t *testing.T, local domain.Identity, acq fakeAcquirer, receiveOnly bool, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{tr: newFakeTransport(), factory: &fakeFactory{}, result: make(chan error, 1)}
	cfg := Config{
		Local:            local,
		Room:             "r1",
		Transport:        h.tr,
		Factory:          h.factory,
		Acquirer:         acq,
		Media:            media.Request{Audio: true},
		AllowReceiveOnly: receiveOnly,
		MaxChatLength:    100,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.s = New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.result <- h.s.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

// waitFor consumes session events until match accepts one.
func (h *harness) waitFor(t *testing.T, what string, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-h.s.Events():
			if !ok {
				t.Fatalf("events closed while waiting for %s", what)
			}
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (h *harness) waitStatus(t *testing.T, st Status) StatusChanged {
	t.Helper()
	return h.waitFor(t, string(st), func(e Event) bool {
		sc, ok := e.(StatusChanged)
		return ok && sc.Status == st
	}).(StatusChanged)
}

func (h *harness) expectSent(t *testing.T, typ protocol.Type) protocol.Envelope {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case env := <-h.tr.sent:
			if env.Type == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting to send %s", typ)
		}
	}
}

// sentNow drains what has been sent so far.
func (h *harness) sentNow() []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env := <-h.tr.sent:
			out = append(out, env)
		default:
			return out
		}
	}
}

// sync waits until the actor has processed everything queued before it.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	if _, err := h.s.Roster(); err != nil {
		t.Fatalf("actor not running: %v", err)
	}
}

func (h *harness) admitGuest(t *testing.T, local domain.Identity) {
	t.Helper()
	h.tr.events <- transport.Connected{}
	h.tr.deliver(protocol.Welcome("r1", local, "h@x", domain.StatusUnknown))
	h.expectSent(t, protocol.TypeJoinRequest)
	h.waitStatus(t, StatusWaiting)
	h.tr.deliver(protocol.Approval(local, domain.StatusApproved, "", "h@x"))
	h.waitStatus(t, StatusInMeeting)
}

func TestHostAdmittedOnWelcome(t *testing.T) {
	h := start(t, "h@x", fakeAcquirer{}, true)
	h.tr.deliver(protocol.Welcome("r1", "h@x", "h@x", domain.StatusApproved))
	h.waitStatus(t, StatusInMeeting)
	h.sync(t)
	for _, env := range h.sentNow() {
		if env.Type == protocol.TypeJoinRequest {
			t.Error("host must not request to join")
		}
	}

	at := time.Now()
	h.tr.deliver(protocol.JoinRequest(domain.JoinRequest{Identity: "g@x", RequestedAt: at}))
	req := h.waitFor(t, "join request", func(e Event) bool { _, ok := e.(JoinRequested); return ok }).(JoinRequested)
	if req.Identity != "g@x" || !req.RequestedAt.Equal(at) {
		t.Errorf("request = %+v", req)
	}
	if err := h.s.Approve("g@x"); err != nil {
		t.Fatal(err)
	}
	env := h.expectSent(t, protocol.TypeApproval)
	if env.Identity != "g@x" || env.Status != domain.StatusApproved {
		t.Errorf("approval = %+v", env)
	}
	if err := h.s.Reject("g2@x", "room full"); err != nil {
		t.Fatal(err)
	}
	if env := h.expectSent(t, protocol.TypeApproval); env.Status != domain.StatusRejected || env.Reason != "room full" {
		t.Errorf("rejection = %+v", env)
	}
}

func TestGuestCannotModerate(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g@x")
	if err := h.s.Approve("x@x"); !errors.Is(err, domain.ErrNotHost) {
		t.Errorf("Approve err = %v", err)
	}
	if err := h.s.Kick("h@x", ""); !errors.Is(err, domain.ErrNotHost) {
		t.Errorf("Kick err = %v", err)
	}
}

// One offer per pair, from the earlier admitted member.
func TestOffersOnlyToLaterMembers(t *testing.T) {
	h := start(t, "g1@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g1@x")

	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g1@x"}))
	h.waitFor(t, "roster", func(e Event) bool { _, ok := e.(RosterChanged); return ok })
	h.sync(t)
	for _, env := range h.sentNow() {
		if env.Type == protocol.TypeOffer {
			t.Fatalf("g1 offered to %s", env.To)
		}
	}

	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g1@x", "g2@x"}))
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g1@x", "g2@x"}))
	h.sync(t)
	var offers []domain.Identity
	for _, env := range h.sentNow() {
		if env.Type == protocol.TypeOffer {
			offers = append(offers, env.To)
		}
	}
	if len(offers) != 1 || offers[0] != "g2@x" {
		t.Errorf("offers = %v, want exactly one to g2", offers)
	}
	if n := len(h.factory.all()); n != 2 {
		t.Errorf("peer connections = %d, want one per remote", n)
	}

	// g2 leaves: only its link goes
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g1@x"}))
	h.sync(t)
	pcs := h.factory.all()
	if pcs[0].isClosed() || !pcs[1].isClosed() {
		t.Errorf("closed = %v/%v, want only g2's link closed", pcs[0].isClosed(), pcs[1].isClosed())
	}
}

func TestRejectedEndsSession(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	h.tr.deliver(protocol.Welcome("r1", "g@x", "h@x", domain.StatusUnknown))
	h.tr.deliver(protocol.Approval("g@x", domain.StatusRejected, "room full", "h@x"))
	sc := h.waitStatus(t, StatusRejected)
	if sc.Reason != "room full" {
		t.Errorf("reason = %q", sc.Reason)
	}
	err := <-h.result
	if !errors.Is(err, ErrRejected) || domain.KindOf(err) != domain.KindAdmission {
		t.Errorf("Run = %v", err)
	}
	if !h.tr.isClosed() {
		t.Error("transport left open")
	}
}

func TestKickedClosesEverything(t *testing.T) {
	h := start(t, "g2@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g2@x")
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g1@x", "g2@x"}))
	h.sync(t)

	h.tr.deliver(protocol.Kicked("g2@x", "spam", "h@x"))
	k := h.waitFor(t, "kicked", func(e Event) bool { _, ok := e.(Kicked); return ok }).(Kicked)
	if k.Reason != "spam" || k.By != "h@x" {
		t.Errorf("kicked = %+v", k)
	}
	h.waitStatus(t, StatusKicked)
	if err := <-h.result; !errors.Is(err, domain.ErrEvicted) {
		t.Errorf("Run = %v", err)
	}
	for i, pc := range h.factory.all() {
		if !pc.isClosed() {
			t.Errorf("link %d left open", i)
		}
	}
	if !h.tr.isClosed() {
		t.Error("transport left open")
	}
	if h.s.Status() != StatusKicked {
		t.Errorf("status = %s", h.s.Status())
	}
}

func TestReconnectRehydrates(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g@x")
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g@x"}))
	old := protocol.Chat(domain.ChatMessage{Sender: "h@x", Text: "hi", OriginID: "01"})
	h.tr.deliver(old)
	h.waitFor(t, "chat", func(e Event) bool { _, ok := e.(ChatReceived); return ok })

	h.tr.events <- transport.Disconnected{Err: domain.TransportError("read", errors.New("eof"))}
	h.waitStatus(t, StatusConnecting)
	h.sync(t)
	if !h.factory.all()[0].isClosed() {
		t.Error("links should be torn down on disconnect")
	}
	if r, _ := h.s.Roster(); len(r) != 0 {
		t.Errorf("roster kept across disconnect: %v", r)
	}

	h.tr.events <- transport.Connected{Reconnect: true}
	h.tr.deliver(protocol.Welcome("r1", "g@x", "h@x", domain.StatusApproved))
	h.expectSent(t, protocol.TypeJoinRequest)
	h.tr.deliver(protocol.Approval("g@x", domain.StatusApproved, "", "h@x"))
	h.waitStatus(t, StatusInMeeting)
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g@x"}))
	h.tr.deliver(protocol.ChatHistory([]domain.ChatMessage{
		*old.Chat,
		{Sender: "h@x", Text: "missed", OriginID: "02"},
	}))
	hist := h.waitFor(t, "history", func(e Event) bool { _, ok := e.(ChatHistory); return ok }).(ChatHistory)
	if len(hist.Messages) != 1 || hist.Messages[0].OriginID != "02" {
		t.Errorf("history = %+v, want only the missed message", hist.Messages)
	}
	h.sync(t)
	if n := len(h.factory.all()); n != 2 {
		t.Errorf("peer connections = %d, want the link rebuilt", n)
	}
	msgs, _ := h.s.Chat()
	if len(msgs) != 2 {
		t.Errorf("chat log = %d messages", len(msgs))
	}
}

func TestChatEchoSuppressed(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	if err := h.s.SendChat("early"); !errors.Is(err, domain.ErrUnexpectedState) && !errors.Is(err, ErrNotActive) {
		t.Errorf("chat before admission: %v", err)
	}
	h.admitGuest(t, "g@x")

	if err := h.s.SendChat("hello"); err != nil {
		t.Fatal(err)
	}
	env := h.expectSent(t, protocol.TypeChat)
	h.tr.deliver(env)
	h.tr.deliver(protocol.Chat(domain.ChatMessage{Sender: "h@x", Text: "hey", OriginID: "X"}))
	h.waitFor(t, "host chat", func(e Event) bool {
		c, ok := e.(ChatReceived)
		return ok && c.Message.Sender == "h@x"
	})
	msgs, _ := h.s.Chat()
	if len(msgs) != 2 {
		t.Errorf("log = %+v, want own message once plus host message", msgs)
	}
}

func TestReceiveOnlyWhenCaptureFails(t *testing.T) {
	capErr := domain.MediaAcquisitionError("acquire", errors.New("no camera"))
	h := start(t, "g@x", fakeAcquirer{err: capErr}, true)
	ro := h.waitFor(t, "receive-only", func(e Event) bool { _, ok := e.(ReceiveOnly); return ok }).(ReceiveOnly)
	if domain.KindOf(ro.Err) != domain.KindMedia {
		t.Errorf("err = %v", ro.Err)
	}
	h.waitStatus(t, StatusConnecting)

	strict := start(t, "g@x", fakeAcquirer{err: capErr}, false)
	if err := <-strict.result; !errors.Is(err, capErr) {
		t.Errorf("Run = %v", err)
	}
}

func TestTransportFailureEndsSession(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g@x")
	h.tr.events <- transport.Failed{Err: domain.TransportError("reconnect", errors.New("refused"))}
	h.waitStatus(t, StatusFailed)
	if err := <-h.result; domain.KindOf(err) != domain.KindTransport {
		t.Errorf("Run = %v", err)
	}
}

func TestLeave(t *testing.T) {
	h := start(t, "g@x", fakeAcquirer{}, true)
	h.admitGuest(t, "g@x")
	if err := h.s.Leave(); err != nil {
		t.Fatal(err)
	}
	h.expectSent(t, protocol.TypeLeave)
	if err := <-h.result; err != nil {
		t.Errorf("Run = %v", err)
	}
	if err := h.s.SendChat("late"); !errors.Is(err, ErrNotActive) {
		t.Errorf("command after Run = %v", err)
	}
}

type chanSource struct {
	id   string
	kind webrtc.RTPCodecType
	ch   chan *rtp.Packet
}

func (c *chanSource) ID() string                { return c.id }
func (c *chanSource) Kind() webrtc.RTPCodecType { return c.kind }
func (c *chanSource) ReadRTP() (*rtp.Packet, error) {
	p, ok := <-c.ch
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

type seqSink struct{ got chan uint16 }

func (s *seqSink) WriteRTP(p *rtp.Packet) error {
	s.got <- p.SequenceNumber
	return nil
}

func TestMutedPeerSkipsPlayback(t *testing.T) {
	sinks := map[webrtc.RTPCodecType]*seqSink{
		webrtc.RTPCodecTypeAudio: {got: make(chan uint16, 16)},
		webrtc.RTPCodecTypeVideo: {got: make(chan uint16, 16)},
	}
	h := start(t, "h@x", fakeAcquirer{}, true, func(c *Config) {
		c.Playback = func(_ domain.Identity, kind webrtc.RTPCodecType) (media.Sink, error) {
			return sinks[kind], nil
		}
	})
	h.tr.deliver(protocol.Welcome("r1", "h@x", "h@x", domain.StatusApproved))
	h.tr.deliver(protocol.Roster([]domain.Identity{"h@x", "g@x"}))
	h.expectSent(t, protocol.TypeOffer)
	pc := h.factory.all()[0]

	if err := h.s.SetPeerMuted("x@x", true); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("mute stranger: %v", err)
	}
	if err := h.s.SetPeerMuted("h@x", true); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("mute self: %v", err)
	}

	audio := &chanSource{id: "g-audio", kind: webrtc.RTPCodecTypeAudio, ch: make(chan *rtp.Packet)}
	t.Cleanup(func() { close(audio.ch) })
	pc.remoteTrack(audio)
	h.waitFor(t, "remote track", func(e Event) bool {
		pe, ok := e.(PeerEvent)
		return ok && pe.Event == mesh.RemoteTrack{Peer: "g@x", Track: "g-audio", Kind: webrtc.RTPCodecTypeAudio}
	})

	send := func(n uint16) { audio.ch <- &rtp.Packet{Header: rtp.Header{SequenceNumber: n}, Payload: []byte{1}} }
	send(1)
	if got := <-sinks[webrtc.RTPCodecTypeAudio].got; got != 1 {
		t.Fatalf("first packet = %d", got)
	}

	if err := h.s.SetPeerMuted("g@x", true); err != nil {
		t.Fatal(err)
	}
	send(2)
	send(3) // forces 2 through the relay
	if err := h.s.SetPeerMuted("g@x", false); err != nil {
		t.Fatal(err)
	}
	send(4)
	for {
		got := <-sinks[webrtc.RTPCodecTypeAudio].got
		if got == 2 {
			t.Fatal("packet delivered while muted")
		}
		if got == 4 {
			break
		}
	}

	// tracks that arrive while the peer is muted start muted
	if err := h.s.SetPeerMuted("g@x", true); err != nil {
		t.Fatal(err)
	}
	video := &chanSource{id: "g-video", kind: webrtc.RTPCodecTypeVideo, ch: make(chan *rtp.Packet)}
	t.Cleanup(func() { close(video.ch) })
	pc.remoteTrack(video)
	h.waitFor(t, "video track", func(e Event) bool {
		pe, ok := e.(PeerEvent)
		rt, isTrack := pe.Event.(mesh.RemoteTrack)
		return ok && isTrack && rt.Track == "g-video"
	})
	video.ch <- &rtp.Packet{Header: rtp.Header{SequenceNumber: 10}}
	video.ch <- &rtp.Packet{Header: rtp.Header{SequenceNumber: 11}}
	if n := len(sinks[webrtc.RTPCodecTypeVideo].got); n != 0 {
		t.Errorf("muted video sink got %d packets", n)
	}
}
