package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// IdentityServiceName is the fully qualified gRPC service name. The service
// speaks well-known protobuf types only, so peers need no generated stubs.
const IdentityServiceName = "storefront.identity.v1.IdentityService"

const (
	verifyTokenMethod = "/" + IdentityServiceName + "/VerifyToken"
	getUserMethod     = "/" + IdentityServiceName + "/GetUser"
)

// IdentityServer is implemented by GRPCServer.
type IdentityServer interface {
	// VerifyToken checks an access token and returns the caller's current
	// {userId, email, role}.
	VerifyToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetUser returns a user by id. Requires an access token in the
	// "authorization" metadata.
	GetUser(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(IdentityServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IdentityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IdentityServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "VerifyToken",
			Handler:    unaryHandler(verifyTokenMethod, IdentityServer.VerifyToken),
		},
		{
			MethodName: "GetUser",
			Handler:    unaryHandler(getUserMethod, IdentityServer.GetUser),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/identity/v1/identity.proto",
}

// IdentityClient calls IdentityService over an existing connection.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

func (c *IdentityClient) VerifyToken(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, verifyTokenMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityClient) GetUser(ctx context.Context, userID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getUserMethod, wrapperspb.String(userID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
