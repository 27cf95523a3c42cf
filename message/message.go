// Package message defines the RPC request/response envelopes exchanged
// between client and server.
//
// Request is the "envelope" for every RPC call. It gets serialized by the
// codec layer and wrapped in a protocol frame for transmission over TCP.
package message

// Request carries everything needed to dispatch a single RPC call.
// Immutable once sent: the pipeline never mutates a Request after Encode.
type Request struct {
	RequestID   string            // Client-generated correlation id, independent of the wire msgId
	ClassName   string            // Service name, e.g. "Arith"
	MethodName  string            // Method name, e.g. "Add"
	ParamTypes  []string          // Informational; the server resolves real types via reflection
	Params      []byte            // Serialized args (JSON), decoded against the registered method's ArgType
	Heartbeat   bool              // True for heartbeat requests; Params is empty in that case
	Attachments map[string]string // Out-of-band key/value pairs carried alongside the call, e.g. tracing context
}

// ServiceMethod renders "ClassName.MethodName", the key the server's
// service map is indexed by.
func (r *Request) ServiceMethod() string {
	return r.ClassName + "." + r.MethodName
}

// Response carries the outcome of a single RPC call.
// Exactly one of Result / Error is meaningful.
type Response struct {
	RequestID   string            // Echoes the originating Request.RequestID
	Result      []byte            // Serialized reply (JSON); nil when Error is set
	Error       string            // Non-empty if the server-side handler returned an error
	Attachments map[string]string // Out-of-band key/value pairs returned alongside the result
}

// PongResult is the literal payload of a heartbeat response, per the wire
// contract: a HEARTBEAT_RESPONSE carries this string as its Result.
const PongResult = "PONG"
