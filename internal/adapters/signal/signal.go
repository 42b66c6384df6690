package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Orch *orch.Orchestrator
	Opts Options

	JoinLimiter *RateLimiter
	ChatLimiter *RateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, opts Options, join, chat *RateLimiter) *SignalWSController {
	return &SignalWSController{
		Orch:        o,
		Opts:        opts,
		JoinLimiter: join,
		ChatLimiter: chat,
	}
}

// WsSignalConn is the server side of one control connection. Frames are
// encoded on TrySend so slow peers never hold the room lock.
type WsSignalConn struct {
	conn  *websocket.Conn
	codec protocol.Codec
	send  chan []byte

	mu       sync.RWMutex
	closed   bool
	flushing bool
}

func (c *WsSignalConn) TrySend(env protocol.Envelope) error {
	data, err := c.codec.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.flushing {
		return domain.ErrClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

// CloseAfterFlush stops accepting frames; the write pump drains what is
// queued, sends a close frame and drops the connection.
func (c *WsSignalConn) CloseAfterFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.flushing {
		return
	}
	c.flushing = true
	close(c.send)
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if !c.flushing {
		close(c.send)
	}
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either
// side closes it. ctx is the server lifetime, not the request's.
func (ctl *SignalWSController) HandleSignal(
	ctx context.Context,
	c *gin.Context,
	roomID domain.RoomID,
	identity domain.Identity,
	codec protocol.Codec,
) {
	if _, err := ctl.Orch.Directory.ValidateMeeting(c.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn:  ws,
		codec: codec,
		send:  make(chan []byte, ctl.Opts.SendBuffer),
	}
	sid := core.SessionID(uuid.NewString())
	sess := core.NewMemberSession(sid, identity, conn)
	ctx, cancel := context.WithCancel(ctx)

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).
		Str("identity", string(identity)).Str("codec", codec.Name()).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	if err := ctl.Orch.Connect(ctx, roomID, sess, cancel); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connect refused")
		_ = conn.TrySend(protocol.Error(err.Error()))
		conn.CloseAfterFlush()
	}
	// the read pump owns teardown in both cases
	go ctl.readPump(ctx, cancel, sid, conn)
}
