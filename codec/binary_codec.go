package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"airpc/message"
	"airpc/protocol"
)

// BinaryCodec implements a custom binary serialization for Request/Response.
//
// Request format:
//
//	┌─────┬──────────┬──────────┬───────────┬──────────────┬──────────┬──────┬───────────────┐
//	│tag=0│ ReqID(lp) │ Class(lp)│ Method(lp)│ ParamsLen(4) │  Params  │ HB(1)│ Attachments   │
//	└─────┴──────────┴──────────┴───────────┴──────────────┴──────────┴──────┴───────────────┘
//
// Response format:
//
//	┌─────┬──────────┬────────────────┬───────────┬───────────────┐
//	│tag=1│ ReqID(lp) │ ResultLen(4)+b │ Error(lp) │ Attachments   │
//	└─────┴──────────┴────────────────┴───────────┴───────────────┘
//
// Attachments are count(2) followed by count (lp)key/(lp)value pairs — the
// wire protocol's attachments map (spec.md §3's framed message), carried
// inside the body rather than the fixed 15-byte frame header so the header
// stays exactly magic|version|serializer|type|msgId|length.
//
// "(lp)" fields are 2-byte length prefix + bytes. Only the outer envelope is
// binary; any nested Params/Result payload is still JSON-encoded by the
// caller, the same split the teacher used to avoid paying JSON's field-name
// overhead twice.
type BinaryCodec struct{}

const (
	tagRequest  byte = 0
	tagResponse byte = 1
)

func putLP(buf []byte, offset int, s string) int {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(s)))
	offset += 2
	copy(buf[offset:offset+len(s)], s)
	return offset + len(s)
}

func readLP(data []byte, offset int) (string, int) {
	n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	s := string(data[offset : offset+n])
	return s, offset + n
}

// attachmentsLen computes the encoded size of an attachments map: a 2-byte
// count followed by length-prefixed key/value pairs.
func attachmentsLen(m map[string]string) int {
	n := 2
	for k, v := range m {
		n += 2 + len(k) + 2 + len(v)
	}
	return n
}

func putAttachments(buf []byte, offset int, m map[string]string) int {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(m)))
	offset += 2
	for k, v := range m {
		offset = putLP(buf, offset, k)
		offset = putLP(buf, offset, v)
	}
	return offset
}

func readAttachments(data []byte, offset int) (map[string]string, int) {
	count := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if count == 0 {
		return nil, offset
	}
	m := make(map[string]string, count)
	for i := 0; i < count; i++ {
		var k, v string
		k, offset = readLP(data, offset)
		v, offset = readLP(data, offset)
		m[k] = v
	}
	return m, offset
}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.Request:
		total := 1 + 2 + len(msg.RequestID) + 2 + len(msg.ClassName) + 2 + len(msg.MethodName) + 4 + len(msg.Params) + 1 + attachmentsLen(msg.Attachments)
		buf := make([]byte, total)
		offset := 0
		buf[offset] = tagRequest
		offset++
		offset = putLP(buf, offset, msg.RequestID)
		offset = putLP(buf, offset, msg.ClassName)
		offset = putLP(buf, offset, msg.MethodName)
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Params)))
		offset += 4
		copy(buf[offset:offset+len(msg.Params)], msg.Params)
		offset += len(msg.Params)
		if msg.Heartbeat {
			buf[offset] = 1
		}
		offset++
		putAttachments(buf, offset, msg.Attachments)
		return buf, nil

	case *message.Response:
		total := 1 + 2 + len(msg.RequestID) + 4 + len(msg.Result) + 2 + len(msg.Error) + attachmentsLen(msg.Attachments)
		buf := make([]byte, total)
		offset := 0
		buf[offset] = tagResponse
		offset++
		offset = putLP(buf, offset, msg.RequestID)
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Result)))
		offset += 4
		copy(buf[offset:offset+len(msg.Result)], msg.Result)
		offset += len(msg.Result)
		offset = putLP(buf, offset, msg.Error)
		putAttachments(buf, offset, msg.Attachments)
		return buf, nil

	default:
		return nil, fmt.Errorf("BinaryCodec: unsupported type %T", v)
	}
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("BinaryCodec: empty frame")
	}
	tag := data[0]
	offset := 1

	switch msg := v.(type) {
	case *message.Request:
		if tag != tagRequest {
			return fmt.Errorf("BinaryCodec: tag %d does not match *Request", tag)
		}
		msg.RequestID, offset = readLP(data, offset)
		msg.ClassName, offset = readLP(data, offset)
		msg.MethodName, offset = readLP(data, offset)
		paramsLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		msg.Params = make([]byte, paramsLen)
		copy(msg.Params, data[offset:offset+paramsLen])
		offset += paramsLen
		msg.Heartbeat = data[offset] == 1
		offset++
		msg.Attachments, _ = readAttachments(data, offset)
		return nil

	case *message.Response:
		if tag != tagResponse {
			return fmt.Errorf("BinaryCodec: tag %d does not match *Response", tag)
		}
		msg.RequestID, offset = readLP(data, offset)
		resultLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		msg.Result = make([]byte, resultLen)
		copy(msg.Result, data[offset:offset+resultLen])
		offset += resultLen
		msg.Error, offset = readLP(data, offset)
		msg.Attachments, _ = readAttachments(data, offset)
		return nil

	default:
		return fmt.Errorf("BinaryCodec: unsupported type %T", v)
	}
}

func (c *BinaryCodec) Type() protocol.SerializerType {
	return protocol.SerializerProtostuff
}
