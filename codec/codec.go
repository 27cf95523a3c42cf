// Package codec provides the serialization layer for the wire protocol.
//
// It defines a pluggable Codec interface with two implementations:
//   - JSONCodec:   human-readable, easy to debug, slower
//   - BinaryCodec: compact binary format, faster — the default serializer
//
// The serializer type is stored in the protocol frame header so the
// receiver knows which codec to use for deserialization.
package codec

import "airpc/protocol"

// Codec is the interface for serialization/deserialization of
// *message.Request and *message.Response values.
// Implementing this interface allows adding new formats without changing
// any other layer — this is the Strategy pattern.
type Codec interface {
	Encode(v any) ([]byte, error)    // Serialize a Request/Response to bytes
	Decode(data []byte, v any) error // Deserialize bytes back into a Request/Response
	Type() protocol.SerializerType   // Return the serializer type identifier
}

// Get is a factory function that returns the appropriate codec for a
// serializer type. The JDK value selects JSON; every other value, including
// the default (protostuff slot) and unknown values, gets the binary codec.
func Get(serializer protocol.SerializerType) Codec {
	if serializer == protocol.SerializerJDK {
		return &JSONCodec{}
	}
	return &BinaryCodec{}
}
