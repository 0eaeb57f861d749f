package transfer

import (
	"google.golang.org/protobuf/proto"

	"go.klb.dev/xfer/internal/registry"
)

// Proto carries application records of a single protobuf message type.
// Values are mutable message pointers, so every decode yields a fresh one.
type Proto struct {
	byteArray
	proto proto.Message
}

// NewProto registers "application/x-protobuf;type=<full name>" for the
// message type of prototype.
func NewProto(reg *registry.Registry, prototype proto.Message) *Proto {
	name := string(prototype.ProtoReflect().Descriptor().FullName())
	return &Proto{
		byteArray: newByteArray(reg, protoFormatPrefix+name),
		proto:     prototype,
	}
}

func (c *Proto) Name() string {
	return "proto:" + string(c.proto.ProtoReflect().Descriptor().FullName())
}

// Validate requires a non-nil message of the codec's type with at least one
// field set. An all-default message has an empty encoding, which is
// indistinguishable from no payload.
func (c *Proto) Validate(value any) bool {
	m, ok := value.(proto.Message)
	if !ok || m == nil || !m.ProtoReflect().IsValid() {
		return false
	}
	if m.ProtoReflect().Descriptor().FullName() != c.proto.ProtoReflect().Descriptor().FullName() {
		return false
	}
	return proto.Size(m) > 0
}

func (c *Proto) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) || !c.supports(t) {
		return Failure(t)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(value.(proto.Message))
	if err != nil {
		return Failure(t)
	}
	return c.encodeBytes(b, t)
}

func (c *Proto) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	m := c.proto.ProtoReflect().New().Interface()
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, false
	}
	return m, true
}
