package server

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"airpc/codec"
	"airpc/message"
	"airpc/protocol"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func (a *Arith) Fail(args *Args, reply *Reply) error {
	return errServerFailure
}

var errServerFailure = &testError{"business failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestServerRoundTrip(t *testing.T) {
	svr := NewServer()
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatalf("failed to register service: %v", err)
	}

	go svr.Serve("tcp", ":8899", "", nil)
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", ":8899")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	params, err := json.Marshal(&Args{1, 2})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}

	req := &message.Request{RequestID: "req-1", ClassName: "Arith", MethodName: "Add", Params: params}
	cdc := codec.Get(protocol.SerializerJDK)

	body, err := cdc.Encode(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}

	header := protocol.Header{
		Serializer: protocol.SerializerJDK,
		MsgType:    protocol.MsgTypeRequest,
		MsgID:      123,
		BodyLen:    uint32(len(body)),
	}
	if err := protocol.Encode(conn, &header, body); err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	replyHeader, responseBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("decode reply frame: %v", err)
	}

	if replyHeader.MsgID != header.MsgID {
		t.Fatalf("expect replyHeader.MsgID=%v, got %v", header.MsgID, replyHeader.MsgID)
	}
	if replyHeader.Serializer != header.Serializer {
		t.Fatalf("expect replyHeader.Serializer=%v, got %v", header.Serializer, replyHeader.Serializer)
	}
	if replyHeader.MsgType != protocol.MsgTypeResponse {
		t.Fatalf("expect replyHeader.MsgType=%v, got %v", protocol.MsgTypeResponse, replyHeader.MsgType)
	}

	resp := &message.Response{}
	if err := cdc.Decode(responseBody, resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RequestID != req.RequestID {
		t.Fatalf("expect RequestID %q echoed back, got %q", req.RequestID, resp.RequestID)
	}

	var reply Reply
	if err := json.Unmarshal(resp.Result, &reply); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if reply.Result != 3 {
		t.Fatalf("expect result 3, got %v", reply.Result)
	}
}

func TestServerUnknownService(t *testing.T) {
	svr := NewServer()
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatalf("failed to register service: %v", err)
	}

	go svr.Serve("tcp", ":8898", "", nil)
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", ":8898")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := &message.Request{RequestID: "req-2", ClassName: "NoSuchService", MethodName: "Add", Params: []byte("{}")}
	cdc := codec.Get(protocol.DefaultSerializer)
	body, _ := cdc.Encode(req)
	header := protocol.Header{Serializer: protocol.DefaultSerializer, MsgType: protocol.MsgTypeRequest, MsgID: 1, BodyLen: uint32(len(body))}
	if err := protocol.Encode(conn, &header, body); err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	_, responseBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("decode reply frame: %v", err)
	}
	resp := &message.Response{}
	if err := cdc.Decode(responseBody, resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expect error for unknown service")
	}
}

func TestServerHeartbeat(t *testing.T) {
	svr := NewServer()
	go svr.Serve("tcp", ":8897", "", nil)
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", ":8897")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	header := protocol.Header{Serializer: protocol.DefaultSerializer, MsgType: protocol.MsgTypeHeartbeatRequest, MsgID: 42, BodyLen: 0}
	if err := protocol.Encode(conn, &header, nil); err != nil {
		t.Fatalf("encode heartbeat: %v", err)
	}

	replyHeader, responseBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("decode heartbeat reply: %v", err)
	}
	if replyHeader.MsgType != protocol.MsgTypeHeartbeatResponse {
		t.Fatalf("expect MsgTypeHeartbeatResponse, got %v", replyHeader.MsgType)
	}
	if replyHeader.MsgID != header.MsgID {
		t.Fatalf("expect heartbeat msgId echoed, got %v", replyHeader.MsgID)
	}

	cdc := codec.Get(protocol.DefaultSerializer)
	resp := &message.Response{}
	if err := cdc.Decode(responseBody, resp); err != nil {
		t.Fatalf("decode heartbeat response: %v", err)
	}
	if string(resp.Result) != message.PongResult {
		t.Fatalf("expect PongResult %q, got %q", message.PongResult, string(resp.Result))
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	svr := NewServer()
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatalf("failed to register service: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- svr.Serve("tcp", ":8896", "", nil) }()
	time.Sleep(100 * time.Millisecond)

	if err := svr.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expect Serve to return nil after shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
