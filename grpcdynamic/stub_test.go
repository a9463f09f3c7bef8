package grpcdynamic

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
	"github.com/jhump/dynproto/internal/prototest"
)

const echoProto = `
	syntax = "proto3";
	package echo.v1;

	message Req {
		string text = 1;
		int32 count = 2;
	}

	message Resp {
		string text = 1;
		int32 index = 2;
	}

	service Echo {
		rpc Say(Req) returns (Resp);
		rpc Count(Req) returns (stream Resp);
		rpc Collect(stream Req) returns (Resp);
		rpc Chat(stream Req) returns (stream Resp);
	}
`

// echoServer implements echo.v1.Echo without generated code, using the
// same codec as the stub.
type echoServer struct {
	pool *desc.Pool
}

func (s *echoServer) handle(_ any, stream grpc.ServerStream) error {
	name, _ := grpc.MethodFromServerStream(stream)
	method, ok := s.pool.FindMethodByName(strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "."))
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method %s", name)
	}
	resp := func(text string, index int32) *dynamic.Message {
		m := dynamic.NewMessage(method.Output())
		m.SetFieldByName("text", dynamic.ValueOfString(text))
		m.SetFieldByName("index", dynamic.ValueOfInt32(index))
		return m
	}
	recv := func() (*dynamic.Message, error) {
		req := dynamic.NewMessage(method.Input())
		if err := stream.RecvMsg(req); err != nil {
			return nil, err
		}
		return req, nil
	}

	switch method.Name() {
	case "Say":
		req, err := recv()
		if err != nil {
			return err
		}
		text := req.GetFieldOrDefaultByName("text").String()
		if text == "fail" {
			return status.Error(codes.InvalidArgument, "refusing to echo")
		}
		_ = stream.SendHeader(metadata.Pairs("x-echo", text))
		stream.SetTrailer(metadata.Pairs("x-done", "yes"))
		return stream.SendMsg(resp(text, req.GetFieldOrDefaultByName("count").Int32()))
	case "Count":
		req, err := recv()
		if err != nil {
			return err
		}
		text := req.GetFieldOrDefaultByName("text").String()
		for i := int32(0); i < req.GetFieldOrDefaultByName("count").Int32(); i++ {
			if err := stream.SendMsg(resp(text, i)); err != nil {
				return err
			}
		}
		return nil
	case "Collect":
		var texts []string
		for {
			req, err := recv()
			if errors.Is(err, io.EOF) {
				return stream.SendMsg(resp(strings.Join(texts, ","), int32(len(texts))))
			}
			if err != nil {
				return err
			}
			texts = append(texts, req.GetFieldOrDefaultByName("text").String())
		}
	default:
		for i := int32(0); ; i++ {
			req, err := recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := stream.SendMsg(resp(strings.ToUpper(req.GetFieldOrDefaultByName("text").String()), i)); err != nil {
				return err
			}
		}
	}
}

type echoFixture struct {
	stub *Stub
	pool *desc.Pool
}

func (f *echoFixture) method(t *testing.T, name string) desc.MethodDescriptor {
	t.Helper()
	md, ok := f.pool.FindMethodByName("echo.v1.Echo." + name)
	require.True(t, ok)
	return md
}

func (f *echoFixture) req(t *testing.T, text string, count int32) *dynamic.Message {
	t.Helper()
	md, ok := f.pool.FindMessageByName("echo.v1.Req")
	require.True(t, ok)
	m := dynamic.NewMessage(md)
	m.SetFieldByName("text", dynamic.ValueOfString(text))
	m.SetFieldByName("count", dynamic.ValueOfInt32(count))
	return m
}

func newEchoFixture(t *testing.T) *echoFixture {
	t.Helper()
	pool, err := desc.BuildFromSet(prototest.Compile(t, map[string]string{"echo/v1/echo.proto": echoProto}))
	require.NoError(t, err)

	bc := bufconn.Listen(1 << 16)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.UnknownServiceHandler((&echoServer{pool: pool}).handle),
	)
	go func() {
		if err := srv.Serve(bc); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("running echo server: %v", err)
		}
	}()
	t.Cleanup(srv.GracefulStop)

	cc, err := grpc.NewClient(
		"passthrough:bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return bc.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return &echoFixture{stub: NewStub(cc), pool: pool}
}

func TestUnaryRpc(t *testing.T) {
	f := newEchoFixture(t)
	var header, trailer metadata.MD
	resp, err := f.stub.InvokeRpc(context.Background(), f.method(t, "Say"), f.req(t, "hello", 3),
		grpc.Header(&header), grpc.Trailer(&trailer))
	require.NoError(t, err)
	assert.Equal(t, "echo.v1.Resp", resp.Descriptor().FullName())
	assert.Equal(t, "hello", resp.GetFieldOrDefaultByName("text").String())
	assert.Equal(t, int32(3), resp.GetFieldOrDefaultByName("index").Int32())
	assert.Equal(t, []string{"hello"}, header.Get("x-echo"))
	assert.Equal(t, []string{"yes"}, trailer.Get("x-done"))
}

func TestUnaryRpc_StatusError(t *testing.T) {
	f := newEchoFixture(t)
	_, err := f.stub.InvokeRpc(context.Background(), f.method(t, "Say"), f.req(t, "fail", 0))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "refusing to echo", status.Convert(err).Message())
}

func TestUnaryRpc_CallOptions(t *testing.T) {
	f := newEchoFixture(t)
	var header metadata.MD
	stub := NewStub(f.stub.channel, WithCallOptions(grpc.Header(&header)))
	_, err := stub.InvokeRpc(context.Background(), f.method(t, "Say"), f.req(t, "opts", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"opts"}, header.Get("x-echo"))
}

func TestInvoke_Mismatches(t *testing.T) {
	f := newEchoFixture(t)
	ctx := context.Background()

	// the request must have the method's input type
	respType, ok := f.pool.FindMessageByName("echo.v1.Resp")
	require.True(t, ok)
	_, err := f.stub.InvokeRpc(ctx, f.method(t, "Say"), dynamic.NewMessage(respType))
	require.ErrorContains(t, err, "expecting message of type echo.v1.Req")

	// each entry point accepts only its kind of method
	_, err = f.stub.InvokeRpc(ctx, f.method(t, "Count"), f.req(t, "", 0))
	require.ErrorContains(t, err, "server-streaming")
	_, err = f.stub.InvokeRpcServerStream(ctx, f.method(t, "Say"), f.req(t, "", 0))
	require.ErrorContains(t, err, "unary")
	_, err = f.stub.InvokeRpcClientStream(ctx, f.method(t, "Chat"))
	require.ErrorContains(t, err, "bidi-streaming")
	_, err = f.stub.InvokeRpcBidiStream(ctx, f.method(t, "Collect"))
	require.ErrorContains(t, err, "client-streaming")
}

func TestServerStreamingRpc(t *testing.T) {
	f := newEchoFixture(t)
	ss, err := f.stub.InvokeRpcServerStream(context.Background(), f.method(t, "Count"), f.req(t, "tick", 3))
	require.NoError(t, err)
	for i := int32(0); i < 3; i++ {
		resp, err := ss.RecvMsg()
		require.NoError(t, err)
		assert.Equal(t, "tick", resp.GetFieldOrDefaultByName("text").String())
		assert.Equal(t, i, resp.GetFieldOrDefaultByName("index").Int32())
	}
	_, err = ss.RecvMsg()
	assert.Equal(t, io.EOF, err)
}

func TestClientStreamingRpc(t *testing.T) {
	f := newEchoFixture(t)
	cs, err := f.stub.InvokeRpcClientStream(context.Background(), f.method(t, "Collect"))
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, cs.SendMsg(f.req(t, text, 0)))
	}
	resp, err := cs.CloseAndReceive()
	require.NoError(t, err)
	assert.Equal(t, "a,b,c", resp.GetFieldOrDefaultByName("text").String())
	assert.Equal(t, int32(3), resp.GetFieldOrDefaultByName("index").Int32())
}

func TestBidiStreamingRpc(t *testing.T) {
	f := newEchoFixture(t)
	bds, err := f.stub.InvokeRpcBidiStream(context.Background(), f.method(t, "Chat"))
	require.NoError(t, err)
	for i, text := range []string{"x", "y", "z"} {
		require.NoError(t, bds.SendMsg(f.req(t, text, 0)))
		resp, err := bds.RecvMsg()
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(text), resp.GetFieldOrDefaultByName("text").String())
		assert.Equal(t, int32(i), resp.GetFieldOrDefaultByName("index").Int32())
	}
	require.NoError(t, bds.CloseSend())
	_, err = bds.RecvMsg()
	assert.Equal(t, io.EOF, err)
}
