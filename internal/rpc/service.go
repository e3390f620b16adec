package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "keepr.v1.Keepr"

// Full method names, as seen by interceptors.
const (
	MethodChallenge        = "/" + ServiceName + "/Challenge"
	MethodLogin            = "/" + ServiceName + "/Login"
	MethodPublishKey       = "/" + ServiceName + "/PublishKey"
	MethodLookupKey        = "/" + ServiceName + "/LookupKey"
	MethodRegisterContacts = "/" + ServiceName + "/RegisterContacts"
	MethodPing             = "/" + ServiceName + "/Ping"
)

type KeeprServer interface {
	Challenge(context.Context, *ChallengeRequest) (*ChallengeResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	PublishKey(context.Context, *PublishKeyRequest) (*PublishKeyResponse, error)
	LookupKey(context.Context, *LookupKeyRequest) (*LookupKeyResponse, error)
	RegisterContacts(context.Context, *RegisterContactsRequest) (*RegisterContactsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedKeeprServer can be embedded to satisfy KeeprServer partially.
type UnimplementedKeeprServer struct{}

func (UnimplementedKeeprServer) Challenge(context.Context, *ChallengeRequest) (*ChallengeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Challenge not implemented")
}
func (UnimplementedKeeprServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedKeeprServer) PublishKey(context.Context, *PublishKeyRequest) (*PublishKeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PublishKey not implemented")
}
func (UnimplementedKeeprServer) LookupKey(context.Context, *LookupKeyRequest) (*LookupKeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LookupKey not implemented")
}
func (UnimplementedKeeprServer) RegisterContacts(context.Context, *RegisterContactsRequest) (*RegisterContactsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterContacts not implemented")
}
func (UnimplementedKeeprServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func RegisterKeeprServer(s grpc.ServiceRegistrar, srv KeeprServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds a grpc.MethodDesc handler for one typed method. The wire
// message W is decoded into the typed request before interceptors run, and
// the typed response is encoded back to its wire message.
func unary[Req, Resp any, W, WResp proto.Message](
	fullMethod string,
	newIn func() W,
	decode func(W) (*Req, error),
	encode func(*Resp) (WResp, error),
	call func(KeeprServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		wire := newIn()
		if err := dec(wire); err != nil {
			return nil, err
		}
		in, err := decode(wire)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}

		handler := func(ctx context.Context, req any) (any, error) {
			out, err := call(srv.(KeeprServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			resp, err := encode(out)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KeeprServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Challenge", Handler: unary(MethodChallenge,
			func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			decodeChallengeRequest, encodeChallengeResponse, KeeprServer.Challenge)},
		{MethodName: "Login", Handler: unary(MethodLogin,
			func() *structpb.Struct { return new(structpb.Struct) },
			decodeLoginRequest, encodeLoginResponse, KeeprServer.Login)},
		{MethodName: "PublishKey", Handler: unary(MethodPublishKey,
			func() *structpb.Struct { return new(structpb.Struct) },
			decodePublishKeyRequest, encodePublishKeyResponse, KeeprServer.PublishKey)},
		{MethodName: "LookupKey", Handler: unary(MethodLookupKey,
			func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			decodeLookupKeyRequest, encodeLookupKeyResponse, KeeprServer.LookupKey)},
		{MethodName: "RegisterContacts", Handler: unary(MethodRegisterContacts,
			func() *structpb.Struct { return new(structpb.Struct) },
			decodeRegisterContactsRequest, encodeRegisterContactsResponse, KeeprServer.RegisterContacts)},
		{MethodName: "Ping", Handler: unary(MethodPing,
			func() *emptypb.Empty { return new(emptypb.Empty) },
			decodePingRequest, encodePingResponse, KeeprServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "keepr/v1/keepr",
}

type KeeprClient interface {
	Challenge(ctx context.Context, in *ChallengeRequest, opts ...grpc.CallOption) (*ChallengeResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	PublishKey(ctx context.Context, in *PublishKeyRequest, opts ...grpc.CallOption) (*PublishKeyResponse, error)
	LookupKey(ctx context.Context, in *LookupKeyRequest, opts ...grpc.CallOption) (*LookupKeyResponse, error)
	RegisterContacts(ctx context.Context, in *RegisterContactsRequest, opts ...grpc.CallOption) (*RegisterContactsResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type keeprClient struct {
	cc grpc.ClientConnInterface
}

func NewKeeprClient(cc grpc.ClientConnInterface) KeeprClient {
	return &keeprClient{cc: cc}
}

// invoke encodes in, calls method with gRPC's default proto codec and
// decodes the reply into the typed response.
func invoke[Req, Resp any, W, WResp proto.Message](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in *Req,
	encode func(*Req) (W, error),
	out WResp,
	decode func(WResp) (*Resp, error),
	opts []grpc.CallOption,
) (*Resp, error) {
	wire, err := encode(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	if err := cc.Invoke(ctx, method, wire, out, opts...); err != nil {
		return nil, err
	}
	resp, err := decode(out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return resp, nil
}

func (c *keeprClient) Challenge(ctx context.Context, in *ChallengeRequest, opts ...grpc.CallOption) (*ChallengeResponse, error) {
	return invoke(ctx, c.cc, MethodChallenge, in, encodeChallengeRequest,
		new(structpb.Struct), decodeChallengeResponse, opts)
}

func (c *keeprClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke(ctx, c.cc, MethodLogin, in, encodeLoginRequest,
		new(structpb.Struct), decodeLoginResponse, opts)
}

func (c *keeprClient) PublishKey(ctx context.Context, in *PublishKeyRequest, opts ...grpc.CallOption) (*PublishKeyResponse, error) {
	return invoke(ctx, c.cc, MethodPublishKey, in, encodePublishKeyRequest,
		new(emptypb.Empty), decodePublishKeyResponse, opts)
}

func (c *keeprClient) LookupKey(ctx context.Context, in *LookupKeyRequest, opts ...grpc.CallOption) (*LookupKeyResponse, error) {
	return invoke(ctx, c.cc, MethodLookupKey, in, encodeLookupKeyRequest,
		new(wrapperspb.BytesValue), func(w *wrapperspb.BytesValue) (*LookupKeyResponse, error) {
			return &LookupKeyResponse{Address: in.Address, PublicKey: w.GetValue()}, nil
		}, opts)
}

func (c *keeprClient) RegisterContacts(ctx context.Context, in *RegisterContactsRequest, opts ...grpc.CallOption) (*RegisterContactsResponse, error) {
	return invoke(ctx, c.cc, MethodRegisterContacts, in, encodeRegisterContactsRequest,
		new(wrapperspb.Int64Value), decodeRegisterContactsResponse, opts)
}

func (c *keeprClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke(ctx, c.cc, MethodPing, in, encodePingRequest,
		new(wrapperspb.StringValue), decodePingResponse, opts)
}
