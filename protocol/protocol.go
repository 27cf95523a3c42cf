// Package protocol implements the fixed binary frame protocol used to
// correlate requests with responses on the wire.
//
// It solves TCP's sticky-packet problem by using a fixed-size 15-byte
// header followed by a variable-length body. The receiver reads the
// header first to determine the body length, then reads exactly that
// many bytes.
//
// Frame format:
//
//	0           4  5  6  7       11        15
//	┌───────────┬──┬──┬──┬────────┬─────────┬───────────────┐
//	│magic      │v │se│mt│  msgId │ bodyLen │    body ...    │
//	│0xCAFEBABE │01│  │  │ uint32 │ uint32  │ bodyLen bytes  │
//	└───────────┴──┴──┴──┴────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a well-formed frame. It is mandatory and non-negotiable
// across protocol versions — a mismatch means the peer is speaking a
// different protocol entirely, and the connection is closed rather than
// resynchronized.
const Magic uint32 = 0xCAFEBABE

// Version is the current frame version. This package validates it strictly.
const Version byte = 1

// HeaderSize is the fixed header length: magic(4) + version(1) + serializer(1)
// + type(1) + msgId(4) + bodyLen(4).
const HeaderSize int = 15

// MsgType distinguishes request, response, and heartbeat frames.
type MsgType byte

const (
	MsgTypeRequest           MsgType = 0
	MsgTypeResponse          MsgType = 1
	MsgTypeHeartbeatRequest  MsgType = 2
	MsgTypeHeartbeatResponse MsgType = 3
)

// SerializerType identifies which codec encoded the body.
type SerializerType byte

const (
	SerializerJDK        SerializerType = 0 // wire-compatible naming; encoded as JSON in this port
	SerializerProtostuff SerializerType = 1 // default; encoded as the compact binary codec in this port
)

// DefaultSerializer matches spec: the default serializer is PROTOSTUFF.
const DefaultSerializer = SerializerProtostuff

// Header is the fixed 15-byte frame header.
type Header struct {
	Serializer SerializerType
	MsgType    MsgType
	MsgID      uint32 // sole correlator between a request and its response
	BodyLen    uint32
}

// Encode writes a complete frame (header + body) to w.
// The caller must hold a write lock if multiple goroutines share the same
// writer, otherwise frames from different requests will interleave and
// corrupt the stream. Encode never does partial writes — it relies on the
// transport guaranteeing ordered delivery within a connection.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = Version
	buf[5] = byte(h.Serializer)
	buf[6] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[7:11], h.MsgID)
	binary.BigEndian.PutUint32(buf[11:15], uint32(len(body)))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number and version, then reads exactly BodyLen
// bytes via io.ReadFull, which blocks until the full frame has arrived —
// the blocking equivalent of the buffer-rewind contract used by
// non-blocking netty-style decoders: either a full frame is returned, or
// the read blocks/fails, never a partial frame.
//
// A bad magic number is never resynchronized against: the caller must
// close the connection, per spec.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	magic := binary.BigEndian.Uint32(headerBuf[0:4])
	if magic != Magic {
		return nil, nil, fmt.Errorf("protocol: invalid magic number: %x", magic)
	}

	version := headerBuf[4]
	if version != Version {
		return nil, nil, fmt.Errorf("protocol: unsupported version: %d", version)
	}

	serializer := SerializerType(headerBuf[5])
	msgType := MsgType(headerBuf[6])
	switch msgType {
	case MsgTypeRequest, MsgTypeResponse, MsgTypeHeartbeatRequest, MsgTypeHeartbeatResponse:
	default:
		return nil, nil, fmt.Errorf("protocol: unsupported message type: %d", msgType)
	}

	msgID := binary.BigEndian.Uint32(headerBuf[7:11])
	bodyLen := binary.BigEndian.Uint32(headerBuf[11:15])

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	}

	return &Header{
		Serializer: serializer,
		MsgType:    msgType,
		MsgID:      msgID,
		BodyLen:    bodyLen,
	}, body, nil
}
