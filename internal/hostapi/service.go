// Package hostapi exposes a mailbox-wrapped Runner over gRPC: the thin
// admin surface an operator or cmd/shell drives a running node with.
// No .proto file or generated stub package exists anywhere in this
// repository's retrieved source, so the service descriptor and its
// request/response types below are hand-written in their place, and
// gobCodec stands in for protobuf's wire encoding.
package hostapi

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service name ServiceDesc registers under.
const ServiceName = "p2pstreamd.hostapi.v1.HostAPI"

// Service is the thin admin surface a mailbox-wrapped Runner exposes:
// Subscribe, Unsubscribe, Publish, AddChannel, RemoveChannel, JoinRing,
// and Status. NewService adapts a *mailbox.Mailbox to this shape;
// tests can substitute a fake.
type Service interface {
	Subscribe(context.Context, *SubscribeRequest) (*SubscribeResponse, error)
	Unsubscribe(context.Context, *UnsubscribeRequest) (*UnsubscribeResponse, error)
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	AddChannel(context.Context, *AddChannelRequest) (*AddChannelResponse, error)
	RemoveChannel(context.Context, *RemoveChannelRequest) (*RemoveChannelResponse, error)
	JoinRing(context.Context, *JoinRingRequest) (*JoinRingResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
}

func handleSubscribe(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubscribeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Subscribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Subscribe"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).Subscribe(ctx, req.(*SubscribeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleUnsubscribe(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UnsubscribeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Unsubscribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Unsubscribe"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).Unsubscribe(ctx, req.(*UnsubscribeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlePublish(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Publish"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleAddChannel(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AddChannelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).AddChannel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/AddChannel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).AddChannel(ctx, req.(*AddChannelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleRemoveChannel(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RemoveChannelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).RemoveChannel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/RemoveChannel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).RemoveChannel(ctx, req.(*RemoveChannelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleJoinRing(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinRingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).JoinRing(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/JoinRing"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).JoinRing(ctx, req.(*JoinRingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleStatus(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-written grpc.ServiceDesc this package
// registers in lieu of protoc-generated code.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Subscribe", Handler: handleSubscribe},
		{MethodName: "Unsubscribe", Handler: handleUnsubscribe},
		{MethodName: "Publish", Handler: handlePublish},
		{MethodName: "AddChannel", Handler: handleAddChannel},
		{MethodName: "RemoveChannel", Handler: handleRemoveChannel},
		{MethodName: "JoinRing", Handler: handleJoinRing},
		{MethodName: "Status", Handler: handleStatus},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/hostapi/service.go",
}
