package middleware

import (
	"context"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/sqrl-server/internal/testutil"
)

func TestRecovery_HandlePanic(t *testing.T) {
	t.Parallel()

	rec := NewRecovery(testutil.MakeNoopLogger())
	interceptor := recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(rec.HandlePanic))

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/sqrl.FrontChannel/GetStatus"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			panic("boom")
		})

	assert.Nil(t, resp)
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
}
