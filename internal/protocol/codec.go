package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec turns envelopes into websocket frames. Binary codecs are written as binary frames.
type Codec interface {
	Name() string
	Binary() bool
	Marshal(Envelope) ([]byte, error)
	Unmarshal([]byte, *Envelope) error
}

// CodecByName resolves a codec negotiated on the connection URL; empty means JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON{}, nil
	case CodecMsgpack:
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type JSON struct{}

func (JSON) Name() string { return CodecJSON }
func (JSON) Binary() bool { return false }

func (JSON) Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func (JSON) Unmarshal(data []byte, e *Envelope) error {
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return nil
}

// Msgpack reuses the json struct tags so both codecs agree on field names.
type Msgpack struct{}

func (Msgpack) Name() string { return CodecMsgpack }
func (Msgpack) Binary() bool { return true }

func (Msgpack) Marshal(e Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(&e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack) Unmarshal(data []byte, e *Envelope) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(e); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return nil
}

// Decode unmarshals and validates in one step.
func Decode(c Codec, data []byte) (Envelope, error) {
	var e Envelope
	if err := c.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
