// Package codec is the single, consolidated serialization layer (spec
// §6's Codec plugin): msgpack for plain Go values, protobuf for values
// implementing proto.Message, json as a debug fallback. The core treats
// every payload as opaque; codec is reached only from HostService's
// cross-host remote-frame path.
// Migration hands off the live actor in-process (internal/scheduler)
// rather than going through a codec, since round-tripping an actor
// through an interface-typed value can marshal it but never reconstruct
// its concrete type on the other side.
package codec

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

var (
	ErrMsgPackMarshal   = errors.New("msgpack marshal error")
	ErrMsgPackUnmarshal = errors.New("msgpack unmarshal error")
	ErrPBMarshal        = errors.New("protobuf marshal error")
	ErrPBUnmarshal      = errors.New("protobuf unmarshal error")
	ErrNotPBMessage     = errors.New("value does not implement proto.Message")
	ErrJSONMarshal      = errors.New("json marshal error")
	ErrJSONUnmarshal    = errors.New("json unmarshal error")
)

// Codec marshals and unmarshals a value to and from bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
	PB      Codec = pbCodec{}
)

// Default dispatches by type, mirroring the teacher's serializer split:
// proto.Message values use the protobuf codec, everything else uses
// msgpack. Used by HostService to encode cross-host remote frames.
var Default Codec = defaultCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, ErrJSONMarshal
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, ErrJSONMarshal.Error())
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 || v == nil {
		return ErrJSONUnmarshal
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, ErrJSONUnmarshal.Error())
	}
	return nil
}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, ErrMsgPackMarshal.Error())
	}
	return data, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, ErrMsgPackUnmarshal.Error())
	}
	return nil
}

type pbCodec struct{}

func (pbCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, ErrNotPBMessage
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, ErrPBMarshal.Error())
	}
	return data, nil
}

func (pbCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return ErrNotPBMessage
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, ErrPBUnmarshal.Error())
	}
	return nil
}

type defaultCodec struct{}

func (defaultCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(proto.Message); ok {
		return PB.Marshal(v)
	}
	return MsgPack.Marshal(v)
}

func (defaultCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(proto.Message); ok {
		return PB.Unmarshal(data, v)
	}
	return MsgPack.Unmarshal(data, v)
}

// Roundtrip marshals then unmarshals v into a freshly allocated *T,
// guaranteeing the result shares no memory with v. Safe for any T whose
// concrete type is known at the call site; unsuitable for a value typed
// only as an interface, since unmarshal has no concrete type to target.
func Roundtrip[T any](c Codec, v T) (T, error) {
	var zero T
	data, err := c.Marshal(v)
	if err != nil {
		return zero, err
	}
	out := new(T)
	if err := c.Unmarshal(data, out); err != nil {
		return zero, err
	}
	return *out, nil
}
