// Package transport keeps one control connection to the coordination server
// alive, redialling with exponential backoff when it drops.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrSendBufferFull = errors.New("send buffer full")

type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (c *Config) defaults() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 * 1024
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 54 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
}

func (c Config) pongWait() time.Duration { return c.PingPeriod * 10 / 9 }

// Backoff returns the wait before reconnect attempt n (1-based).
func Backoff(base, limit time.Duration, n int) time.Duration {
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

// Channel delivers inbound envelopes and lifecycle changes on Events, in order,
// to a single consumer. The stream is closed after Failed or Close.
type Channel struct {
	cfg    Config
	dialer Dialer
	codec  protocol.Codec

	events chan Event
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
	send chan []byte
}

func New(cfg Config, d Dialer, codec protocol.Codec) *Channel {
	cfg.defaults()
	return &Channel{
		cfg:    cfg,
		dialer: d,
		codec:  codec,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

func (c *Channel) Events() <-chan Event { return c.events }

// Connect performs the first dial; its failure is returned without retrying.
// Cancelling ctx closes the channel.
func (c *Channel) Connect(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return domain.TransportError("dial", err)
	}
	stop := context.AfterFunc(ctx, c.Close)
	go func() {
		defer stop()
		c.supervise(ctx, conn)
	}()
	return nil
}

// Send queues env for the current connection. While disconnected the message
// is dropped and ErrNotConnected returned.
func (c *Channel) Send(env protocol.Envelope) error {
	data, err := c.codec.Marshal(env)
	if err != nil {
		return domain.ProtocolError("encode", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return domain.TransportError("send", domain.ErrNotConnected)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return domain.TransportError("send", ErrSendBufferFull)
	}
}

func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

func (c *Channel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) emit(e Event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

func (c *Channel) supervise(ctx context.Context, conn *websocket.Conn) {
	defer close(c.events)
	reconnect := false
	for {
		c.emit(Connected{Reconnect: reconnect})
		err := c.serve(conn)
		if c.closed() {
			return
		}
		log.Warn().Err(err).Str("module", "transport").Msg("connection lost")
		c.emit(Disconnected{Err: domain.TransportError("read", err)})

		if conn = c.redial(ctx); conn == nil {
			return
		}
		reconnect = true
	}
}

func (c *Channel) redial(ctx context.Context) *websocket.Conn {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		wait := Backoff(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
		log.Info().Str("module", "transport").Int("attempt", attempt).Dur("wait", wait).Msg("reconnecting")
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-c.done:
			t.Stop()
			return nil
		}
		conn, err := c.dialer.Dial(ctx)
		if err == nil {
			return conn
		}
		lastErr = err
		if c.closed() {
			return nil
		}
		if errors.Is(err, domain.ErrRoomNotFound) {
			break
		}
	}
	log.Error().Err(lastErr).Str("module", "transport").Msg("giving up")
	c.emit(Failed{Err: domain.TransportError("reconnect", lastErr)})
	return nil
}

// serve runs the pumps for one connection and returns when it is gone.
func (c *Channel) serve(conn *websocket.Conn) error {
	send := make(chan []byte, c.cfg.SendBuffer)
	quit := make(chan struct{})
	c.mu.Lock()
	if c.closed() {
		c.mu.Unlock()
		conn.Close()
		return domain.ErrClosed
	}
	c.conn, c.send = conn, send
	c.mu.Unlock()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.writePump(conn, send, quit)
	}()
	err := c.readPump(conn)

	c.mu.Lock()
	c.conn, c.send = nil, nil
	c.mu.Unlock()
	close(quit)
	<-pumpDone
	conn.Close()
	return err
}
