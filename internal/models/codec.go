package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes frames for one wire encoding.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary messages.
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Encoding names accepted in the ?encoding= query parameter.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// CodecFor returns the codec for name; empty means JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", EncodingJSON:
		return JSONCodec{}, nil
	case EncodingMsgpack:
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// DecodeData converts a frame's loosely decoded data into v by
// re-encoding it with the codec it arrived in.
func DecodeData(c Codec, data any, v any) error {
	if data == nil {
		return nil
	}
	b, err := c.Marshal(data)
	if err != nil {
		return err
	}
	return c.Unmarshal(b, v)
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return EncodingJSON }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec reads the same json struct tags so both encodings share
// one set of field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return EncodingMsgpack }

func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
