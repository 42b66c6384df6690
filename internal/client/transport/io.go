package transport

import (
	"time"

	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Channel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(c.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait()))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := protocol.Decode(c.codec, data)
		if err != nil {
			log.Warn().Err(err).Str("module", "transport").Msg("discarding malformed frame")
			continue
		}
		switch env.Type {
		case protocol.TypePing:
			_ = c.Send(protocol.Envelope{Type: protocol.TypePong})
		case protocol.TypePong:
		default:
			c.emit(Message{Env: env})
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send <-chan []byte, quit <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	frame := websocket.TextMessage
	if c.codec.Binary() {
		frame = websocket.BinaryMessage
	}
	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(frame, msg); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
