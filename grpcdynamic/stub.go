// Package grpcdynamic provides a dynamic RPC stub. It can be used to invoke RPC
// methods where only method descriptors from a pool are known. Requests and
// responses are dynamic messages.
package grpcdynamic

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
)

// Stub is an RPC client stub, used for dynamically dispatching RPCs to a server.
type Stub struct {
	channel  grpc.ClientConnInterface
	callOpts []grpc.CallOption
}

// NewStub creates a new RPC stub that uses the given channel for dispatching RPCs.
func NewStub(channel grpc.ClientConnInterface, opts ...StubOption) *Stub {
	stub := &Stub{channel: channel}
	for _, opt := range opts {
		opt.apply(stub)
	}
	return stub
}

// StubOption is an option that can be used to customize behavior when creating a Stub.
type StubOption interface {
	apply(*Stub)
}

type stubOptionFunc func(*Stub)

func (s stubOptionFunc) apply(stub *Stub) {
	s(stub)
}

// WithCallOptions returns a StubOption that adds the given call options to
// every RPC made with the stub, ahead of any options given for the call
// itself.
func WithCallOptions(opts ...grpc.CallOption) StubOption {
	return stubOptionFunc(func(s *Stub) {
		s.callOpts = append(s.callOpts, opts...)
	})
}

func (s *Stub) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	all := make([]grpc.CallOption, 0, len(s.callOpts)+len(opts)+1)
	all = append(all, grpc.ForceCodec(Codec{}))
	all = append(all, s.callOpts...)
	return append(all, opts...)
}

func requestMethod(md desc.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", md.Service().FullName(), md.Name())
}

func streamDesc(md desc.MethodDescriptor) *grpc.StreamDesc {
	return &grpc.StreamDesc{
		StreamName:    md.Name(),
		ServerStreams: md.IsServerStreaming(),
		ClientStreams: md.IsClientStreaming(),
	}
}

// InvokeRpc sends a unary RPC and returns the response. Use this for unary methods.
func (s *Stub) InvokeRpc(ctx context.Context, method desc.MethodDescriptor, request dynamic.ReflectMessage, opts ...grpc.CallOption) (*dynamic.Message, error) {
	if method.IsClientStreaming() || method.IsServerStreaming() {
		return nil, fmt.Errorf("InvokeRpc is for unary methods; %q is %s", method.FullName(), methodType(method))
	}
	if err := checkMessageType(method.Input(), request); err != nil {
		return nil, err
	}
	resp := dynamic.NewMessage(method.Output())
	if err := s.channel.Invoke(ctx, requestMethod(method), request, resp, s.callOptions(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

// InvokeRpcServerStream sends a unary RPC and returns the response stream. Use this for server-streaming methods.
func (s *Stub) InvokeRpcServerStream(ctx context.Context, method desc.MethodDescriptor, request dynamic.ReflectMessage, opts ...grpc.CallOption) (*ServerStream, error) {
	if method.IsClientStreaming() || !method.IsServerStreaming() {
		return nil, fmt.Errorf("InvokeRpcServerStream is for server-streaming methods; %q is %s", method.FullName(), methodType(method))
	}
	if err := checkMessageType(method.Input(), request); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	cs, err := s.channel.NewStream(ctx, streamDesc(method), requestMethod(method), s.callOptions(opts)...)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cs.SendMsg(request); err != nil {
		cancel()
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, err
	}
	go func() {
		// when the new stream is finished, also cleanup the parent context
		<-cs.Context().Done()
		cancel()
	}()
	return &ServerStream{cs, method.Output()}, nil
}

// InvokeRpcClientStream creates a new stream that is used to send request messages and, at the end,
// receive the response message. Use this for client-streaming methods.
func (s *Stub) InvokeRpcClientStream(ctx context.Context, method desc.MethodDescriptor, opts ...grpc.CallOption) (*ClientStream, error) {
	if !method.IsClientStreaming() || method.IsServerStreaming() {
		return nil, fmt.Errorf("InvokeRpcClientStream is for client-streaming methods; %q is %s", method.FullName(), methodType(method))
	}
	ctx, cancel := context.WithCancel(ctx)
	cs, err := s.channel.NewStream(ctx, streamDesc(method), requestMethod(method), s.callOptions(opts)...)
	if err != nil {
		cancel()
		return nil, err
	}
	go func() {
		<-cs.Context().Done()
		cancel()
	}()
	return &ClientStream{cs, method, cancel}, nil
}

// InvokeRpcBidiStream creates a new stream that is used to both send request messages and receive response
// messages. Use this for bidi-streaming methods.
func (s *Stub) InvokeRpcBidiStream(ctx context.Context, method desc.MethodDescriptor, opts ...grpc.CallOption) (*BidiStream, error) {
	if !method.IsClientStreaming() || !method.IsServerStreaming() {
		return nil, fmt.Errorf("InvokeRpcBidiStream is for bidi-streaming methods; %q is %s", method.FullName(), methodType(method))
	}
	cs, err := s.channel.NewStream(ctx, streamDesc(method), requestMethod(method), s.callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &BidiStream{cs, method.Input(), method.Output()}, nil
}

func methodType(md desc.MethodDescriptor) string {
	switch {
	case md.IsClientStreaming() && md.IsServerStreaming():
		return "bidi-streaming"
	case md.IsClientStreaming():
		return "client-streaming"
	case md.IsServerStreaming():
		return "server-streaming"
	default:
		return "unary"
	}
}

func checkMessageType(md desc.MessageDescriptor, msg dynamic.ReflectMessage) error {
	typeName := msg.Descriptor().FullName()
	if typeName != md.FullName() {
		return fmt.Errorf("expecting message of type %s; got %s", md.FullName(), typeName)
	}
	return nil
}

// ServerStream represents a response stream from a server. Messages in the stream can be queried
// as can header and trailer metadata sent by the server.
type ServerStream struct {
	stream   grpc.ClientStream
	respType desc.MessageDescriptor
}

// Header returns any header metadata sent by the server (blocks if necessary until headers are
// received).
func (s *ServerStream) Header() (metadata.MD, error) {
	return s.stream.Header()
}

// Trailer returns the trailer metadata sent by the server. It must only be called after
// RecvMsg returns a non-nil error (which may be EOF for normal completion of stream).
func (s *ServerStream) Trailer() metadata.MD {
	return s.stream.Trailer()
}

func (s *ServerStream) Context() context.Context {
	return s.stream.Context()
}

// RecvMsg returns the next message in the response stream or an error. If the stream
// has completed normally, the error is io.EOF.
func (s *ServerStream) RecvMsg() (*dynamic.Message, error) {
	resp := dynamic.NewMessage(s.respType)
	if err := s.stream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ClientStream represents a request stream from a client. Messages in the stream can be sent
// and, when done, the unary server message and header and trailer metadata can be queried.
type ClientStream struct {
	stream grpc.ClientStream
	method desc.MethodDescriptor
	cancel context.CancelFunc
}

func (s *ClientStream) Header() (metadata.MD, error) {
	return s.stream.Header()
}

func (s *ClientStream) Trailer() metadata.MD {
	return s.stream.Trailer()
}

func (s *ClientStream) Context() context.Context {
	return s.stream.Context()
}

// SendMsg sends a request message to the server.
func (s *ClientStream) SendMsg(m dynamic.ReflectMessage) error {
	if err := checkMessageType(s.method.Input(), m); err != nil {
		return err
	}
	return s.stream.SendMsg(m)
}

// CloseAndReceive closes the outgoing request stream and then blocks for the server's response.
func (s *ClientStream) CloseAndReceive() (*dynamic.Message, error) {
	if err := s.stream.CloseSend(); err != nil {
		return nil, err
	}
	resp := dynamic.NewMessage(s.method.Output())
	if err := s.stream.RecvMsg(resp); err != nil {
		return nil, err
	}
	// make sure we get EOF for a second message
	if err := s.stream.RecvMsg(dynamic.NewMessage(s.method.Output())); err != io.EOF {
		if err == nil {
			s.cancel()
			return nil, fmt.Errorf("client-streaming method %q returned more than one response message", s.method.FullName())
		}
		return nil, err
	}
	return resp, nil
}

// BidiStream represents a bi-directional stream for sending messages to and receiving
// messages from a server. The header and trailer metadata sent by the server can also be
// queried.
type BidiStream struct {
	stream   grpc.ClientStream
	reqType  desc.MessageDescriptor
	respType desc.MessageDescriptor
}

func (s *BidiStream) Header() (metadata.MD, error) {
	return s.stream.Header()
}

func (s *BidiStream) Trailer() metadata.MD {
	return s.stream.Trailer()
}

func (s *BidiStream) Context() context.Context {
	return s.stream.Context()
}

// SendMsg sends a request message to the server.
func (s *BidiStream) SendMsg(m dynamic.ReflectMessage) error {
	if err := checkMessageType(s.reqType, m); err != nil {
		return err
	}
	return s.stream.SendMsg(m)
}

// CloseSend indicates the request stream has ended. Invoke this after all request messages
// are sent (even if there are zero such messages).
func (s *BidiStream) CloseSend() error {
	return s.stream.CloseSend()
}

// RecvMsg returns the next message in the response stream or an error. If the stream
// has completed normally, the error is io.EOF.
func (s *BidiStream) RecvMsg() (*dynamic.Message, error) {
	resp := dynamic.NewMessage(s.respType)
	if err := s.stream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
