package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T, svc Service) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	require.NoError(t, svc.Register(server))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func echoService() Service {
	return Service{
		Name: "gohome.test.v1.EchoService",
		Methods: []Method{
			{Name: "Echo", Handler: func(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return req, nil
			}},
			{Name: "Fail", Handler: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return nil, status.Error(codes.InvalidArgument, "device_id is required")
			}},
		},
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	conn := startServer(t, echoService())

	out, err := Invoke(context.Background(), conn, "gohome.test.v1.EchoService", "Echo", map[string]any{"device_id": "7", "min_temp": 150.0})
	require.NoError(t, err)
	assert.Equal(t, "7", out["device_id"])
	assert.Equal(t, 150.0, out["min_temp"])
}

func TestInvokeStatusError(t *testing.T) {
	conn := startServer(t, echoService())

	_, err := Invoke(context.Background(), conn, "gohome.test.v1.EchoService", "Fail", nil)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDescriptorRegistered(t *testing.T) {
	svc := echoService()
	require.NoError(t, svc.Register(grpc.NewServer()))

	sd, err := Describe("gohome.test.v1.EchoService")
	require.NoError(t, err)
	require.Equal(t, 2, sd.Methods().Len())
	assert.Equal(t, "google.protobuf.Struct", string(sd.Methods().ByName("Echo").Input().FullName()))
}

func TestEncodeWrapsLists(t *testing.T) {
	out, err := Encode("devices", []map[string]any{{"id": "1"}})
	require.NoError(t, err)
	list := out.AsMap()["devices"].([]any)
	assert.Len(t, list, 1)

	out, err = Encode("", struct {
		Status string `json:"status"`
	}{Status: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.AsMap()["status"])
}

func TestRegisterRejectsUnqualifiedName(t *testing.T) {
	err := Service{Name: "Echo"}.Register(grpc.NewServer())
	assert.Error(t, err)
}
