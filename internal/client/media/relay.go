package media

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type SinkState int32

const (
	SinkStateOk SinkState = iota
	SinkStateMuted
	SinkStateDelete
)

// RTPSource is the read side of a remote track.
type RTPSource interface {
	ID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, error)
}

// Sink consumes packets from one remote track (playback, recording, stats).
// A sink that is also an io.Closer is closed once the relay drops it.
type Sink interface {
	WriteRTP(pkt *rtp.Packet) error
}

type sinkEntry struct {
	sink  Sink
	state atomic.Int32
}

func (e *sinkEntry) State() SinkState { return SinkState(e.state.Load()) }

// Relay fans one remote track out to its sinks.
type Relay struct {
	Src RTPSource

	mu    sync.RWMutex
	sinks map[string]*sinkEntry

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src RTPSource, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:    src,
		sinks:  make(map[string]*sinkEntry),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (r *Relay) AddSink(name string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = &sinkEntry{sink: s}
}

func (r *Relay) setState(name string, st SinkState) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sinks[name]
	if ok {
		e.state.Store(int32(st))
	}
	return ok
}

// Done is closed once the loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }

func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("relay ctx done, marking all sinks for delete")
			r.markAllDelete()
			r.cleanupDeleted(logger)
			return
		default:
		}
		pkt, err := r.Src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP ended")
			r.markAllDelete()
			r.cleanupDeleted(logger)
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	dirty := false
	for name, e := range r.sinks {
		switch e.State() {
		case SinkStateDelete:
			dirty = true
			continue
		case SinkStateMuted:
			continue
		}
		if err := e.sink.WriteRTP(pkt); err != nil {
			logger.Warn().Err(err).Str("sink", name).Msg("sink write error, marking for delete")
			e.state.Store(int32(SinkStateDelete))
			dirty = true
		}
	}
	r.mu.RUnlock()

	if dirty {
		r.cleanupDeleted(logger)
	}
}

func (r *Relay) cleanupDeleted(logger *zerolog.Logger) {
	var closers []io.Closer
	r.mu.Lock()
	for name, e := range r.sinks {
		if e.State() != SinkStateDelete {
			continue
		}
		delete(r.sinks, name)
		if c, ok := e.sink.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	r.mu.Unlock()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("close sink")
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sinks {
		e.state.Store(int32(SinkStateDelete))
	}
}
