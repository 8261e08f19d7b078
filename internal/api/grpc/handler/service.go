package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Full method names of the sqrl.FrontChannel service.
const (
	FrontChannel_BeginLogin_FullMethodName = "/sqrl.FrontChannel/BeginLogin"
	FrontChannel_GetStatus_FullMethodName  = "/sqrl.FrontChannel/GetStatus"
)

// FrontChannelServer is the server API for the sqrl.FrontChannel service.
// Messages are protobuf well-known types so no generated code is needed.
type FrontChannelServer interface {
	// BeginLogin takes the browser IP (empty for the peer address) and
	// returns correlator, nut, sqrl_url and expires_at.
	BeginLogin(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetStatus reads the correlator from metadata and returns status and,
	// once authenticated, idk and login_token.
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterFrontChannelServer registers srv on s.
func RegisterFrontChannelServer(s grpc.ServiceRegistrar, srv FrontChannelServer) {
	s.RegisterService(&FrontChannel_ServiceDesc, srv)
}

func _FrontChannel_BeginLogin_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrontChannelServer).BeginLogin(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FrontChannel_BeginLogin_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrontChannelServer).BeginLogin(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _FrontChannel_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrontChannelServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FrontChannel_GetStatus_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrontChannelServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// FrontChannel_ServiceDesc is the grpc.ServiceDesc for the sqrl.FrontChannel service.
var FrontChannel_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "sqrl.FrontChannel",
	HandlerType: (*FrontChannelServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "BeginLogin",
			Handler:    _FrontChannel_BeginLogin_Handler,
		},
		{
			MethodName: "GetStatus",
			Handler:    _FrontChannel_GetStatus_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sqrl/frontchannel.proto",
}
