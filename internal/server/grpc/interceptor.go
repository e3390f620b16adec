package grpc

import (
	"context"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/rpc"
	"github.com/dmitrijs2005/keepr/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const AddressKey ctxKey = "address"

var protectedMethods = map[string]bool{
	rpc.MethodPublishKey:       true,
	rpc.MethodRegisterContacts: true,
}

// AddressFromContext returns the wallet address the interceptor
// authenticated, or "".
func AddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(AddressKey).(string)
	return v
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	address, err := auth.AddressFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return handler(context.WithValue(ctx, AddressKey, address), req)
}
