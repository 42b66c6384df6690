package core

import "github.com/dkeye/Meet/internal/protocol"

// SignalConnection abstracts the control-channel transport of one member.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues env without blocking; a full queue is reported as back-pressure.
	TrySend(env protocol.Envelope) error
	// CloseAfterFlush stops accepting frames and closes once queued frames are written.
	CloseAfterFlush()
	Close()
}
