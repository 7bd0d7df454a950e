package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/tabline/pkg/errorbank"
)

func TestToStatusMapsAppErrors(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{errorbank.NotFound("order not found"), codes.NotFound, "order not found"},
		{errorbank.Unprocessable("order is closed"), codes.FailedPrecondition, "order is closed"},
		{errorbank.BadRequest("quantity must be a positive integer"), codes.InvalidArgument, "quantity must be a positive integer"},
		{errors.New("sqlite: database is locked"), codes.Internal, "internal error"},
		{status.Error(codes.Unavailable, "draining"), codes.Unavailable, "draining"},
	}
	for _, tc := range cases {
		st, ok := status.FromError(ToStatus(tc.err))
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code(), tc.err.Error())
		assert.Equal(t, tc.msg, st.Message())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestUnaryErrorInterceptor(t *testing.T) {
	interceptor := UnaryErrorInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/tabline.Orders/Get"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errorbank.Conflict("a table with this name already exists")
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
