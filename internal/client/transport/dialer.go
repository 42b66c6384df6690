package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/gorilla/websocket"
)

type Dialer interface {
	Dial(ctx context.Context) (*websocket.Conn, error)
}

// WSDialer connects to /api/ws/:roomId on Server, an http(s) or ws(s) base URL.
type WSDialer struct {
	Server   string
	Room     domain.RoomID
	Identity domain.Identity
	Codec    string
	Dialer   *websocket.Dialer
}

func (d WSDialer) URL() (string, error) {
	u, err := url.Parse(d.Server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path.Join(u.Path, "/api/ws", string(d.Room))
	q := u.Query()
	q.Set("identity", string(d.Identity))
	if d.Codec != "" {
		q.Set("codec", d.Codec)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d WSDialer) Dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := d.URL()
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, d.Room)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}
