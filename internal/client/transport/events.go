package transport

import "github.com/dkeye/Meet/internal/protocol"

type Event interface{ isTransportEvent() }

// Connected follows every successful dial; Reconnect is false only for the first.
type Connected struct{ Reconnect bool }

type Message struct{ Env protocol.Envelope }

// Disconnected means the connection dropped and redialling has started.
type Disconnected struct{ Err error }

// Failed is terminal: the attempt budget is exhausted and Events is closed next.
type Failed struct{ Err error }

func (Connected) isTransportEvent()    {}
func (Message) isTransportEvent()      {}
func (Disconnected) isTransportEvent() {}
func (Failed) isTransportEvent()       {}
