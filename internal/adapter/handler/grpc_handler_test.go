package handler

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

func newGRPCConn(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer()
	RegisterVendingServer(srv, NewGRPCHandler(env.vending))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), FullMethod(method), req, out)
	return out, err
}

func TestGRPC_Purchase(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	out, err := invoke(t, conn, "Purchase", map[string]interface{}{"item_name": "Cola", "user_id": "U1"})
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, float64(2), m["new_stock"])
	assert.Equal(t, float64(150), m["price"])

	out, err = invoke(t, conn, "Purchase", map[string]interface{}{"item_name": "Empty", "user_id": "U1"})
	require.NoError(t, err)
	assert.Equal(t, "out of stock", out.AsMap()["message"])
}

func TestGRPC_Register(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	req := map[string]interface{}{"name": "Taro", "student_id": "S-1", "grade": "2", "userId": "U7"}
	out, err := invoke(t, conn, "Register", req)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.AsMap()["status"])

	out, err = invoke(t, conn, "Register", req)
	require.NoError(t, err)
	assert.Equal(t, "already registered", out.AsMap()["message"])

	out, err = invoke(t, conn, "CheckRegistration", map[string]interface{}{"userId": "U7"})
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["registered"])
	assert.Equal(t, "Taro", out.AsMap()["name"])
}

func TestGRPC_ListItems(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	out, err := invoke(t, conn, "ListItems", map[string]interface{}{})
	require.NoError(t, err)

	items := out.AsMap()["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Cola", items[0].(map[string]interface{})["name"])
}

func TestGRPC_StoreFaultIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)
	env.db.Close()

	_, err := invoke(t, conn, "ListItems", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
