// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package a2agrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ServiceName is the fully qualified name of the A2A gRPC service.
const ServiceName = "a2a.v1.A2AService"

const (
	methodSendMessage          = "/" + ServiceName + "/SendMessage"
	methodSendStreamingMessage = "/" + ServiceName + "/SendStreamingMessage"
	methodGetTask              = "/" + ServiceName + "/GetTask"
	methodCancelTask           = "/" + ServiceName + "/CancelTask"
	methodTaskSubscription     = "/" + ServiceName + "/TaskSubscription"
	methodSetPushConfig        = "/" + ServiceName + "/CreateTaskPushNotificationConfig"
	methodGetPushConfig        = "/" + ServiceName + "/GetTaskPushNotificationConfig"
	methodListPushConfig       = "/" + ServiceName + "/ListTaskPushNotificationConfig"
	methodDeletePushConfig     = "/" + ServiceName + "/DeleteTaskPushNotificationConfig"
)

// A2AServiceServer is the server API of the A2A gRPC service.
type A2AServiceServer interface {
	SendMessage(context.Context, *a2a.MessageSendParams) (*SendMessageResponse, error)
	SendStreamingMessage(*a2a.MessageSendParams, grpc.ServerStreamingServer[StreamResponse]) error
	GetTask(context.Context, *a2a.TaskQueryParams) (*a2a.Task, error)
	CancelTask(context.Context, *a2a.TaskIDParams) (*a2a.Task, error)
	TaskSubscription(*a2a.TaskIDParams, grpc.ServerStreamingServer[StreamResponse]) error
	CreateTaskPushNotificationConfig(context.Context, *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error)
	GetTaskPushNotificationConfig(context.Context, *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error)
	ListTaskPushNotificationConfig(context.Context, *a2a.ListTaskPushConfigParams) (*ListTaskPushConfigResponse, error)
	DeleteTaskPushNotificationConfig(context.Context, *a2a.DeleteTaskPushConfigParams) (*Empty, error)
}

// ServiceDesc describes the A2A gRPC service for [grpc.ServiceRegistrar.RegisterService].
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*A2AServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: unaryHandler(methodSendMessage, A2AServiceServer.SendMessage)},
		{MethodName: "GetTask", Handler: unaryHandler(methodGetTask, A2AServiceServer.GetTask)},
		{MethodName: "CancelTask", Handler: unaryHandler(methodCancelTask, A2AServiceServer.CancelTask)},
		{MethodName: "CreateTaskPushNotificationConfig", Handler: unaryHandler(methodSetPushConfig, A2AServiceServer.CreateTaskPushNotificationConfig)},
		{MethodName: "GetTaskPushNotificationConfig", Handler: unaryHandler(methodGetPushConfig, A2AServiceServer.GetTaskPushNotificationConfig)},
		{MethodName: "ListTaskPushNotificationConfig", Handler: unaryHandler(methodListPushConfig, A2AServiceServer.ListTaskPushNotificationConfig)},
		{MethodName: "DeleteTaskPushNotificationConfig", Handler: unaryHandler(methodDeletePushConfig, A2AServiceServer.DeleteTaskPushNotificationConfig)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SendStreamingMessage", Handler: streamHandler(A2AServiceServer.SendStreamingMessage), ServerStreams: true},
		{StreamName: "TaskSubscription", Handler: streamHandler(A2AServiceServer.TaskSubscription), ServerStreams: true},
	},
	Metadata: "a2a.proto",
}

// RegisterA2AServiceServer registers the server implementation with a gRPC server.
func RegisterA2AServiceServer(s grpc.ServiceRegistrar, srv A2AServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(A2AServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(A2AServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(A2AServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamHandler[Req any](call func(A2AServiceServer, *Req, grpc.ServerStreamingServer[StreamResponse]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(A2AServiceServer), in, &grpc.GenericServerStream[Req, StreamResponse]{ServerStream: stream})
	}
}

// A2AServiceClient is the client API of the A2A gRPC service.
type A2AServiceClient interface {
	SendMessage(ctx context.Context, in *a2a.MessageSendParams, opts ...grpc.CallOption) (*SendMessageResponse, error)
	SendStreamingMessage(ctx context.Context, in *a2a.MessageSendParams, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StreamResponse], error)
	GetTask(ctx context.Context, in *a2a.TaskQueryParams, opts ...grpc.CallOption) (*a2a.Task, error)
	CancelTask(ctx context.Context, in *a2a.TaskIDParams, opts ...grpc.CallOption) (*a2a.Task, error)
	TaskSubscription(ctx context.Context, in *a2a.TaskIDParams, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StreamResponse], error)
	CreateTaskPushNotificationConfig(ctx context.Context, in *a2a.TaskPushConfig, opts ...grpc.CallOption) (*a2a.TaskPushConfig, error)
	GetTaskPushNotificationConfig(ctx context.Context, in *a2a.GetTaskPushConfigParams, opts ...grpc.CallOption) (*a2a.TaskPushConfig, error)
	ListTaskPushNotificationConfig(ctx context.Context, in *a2a.ListTaskPushConfigParams, opts ...grpc.CallOption) (*ListTaskPushConfigResponse, error)
	DeleteTaskPushNotificationConfig(ctx context.Context, in *a2a.DeleteTaskPushConfigParams, opts ...grpc.CallOption) (*Empty, error)
}

type a2aServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewA2AServiceClient creates a client which encodes calls with the JSON codec.
func NewA2AServiceClient(cc grpc.ClientConnInterface) A2AServiceClient {
	return &a2aServiceClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Req any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[StreamResponse], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, StreamResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *a2aServiceClient) SendMessage(ctx context.Context, in *a2a.MessageSendParams, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[a2a.MessageSendParams, SendMessageResponse](ctx, c.cc, methodSendMessage, in, opts)
}

func (c *a2aServiceClient) SendStreamingMessage(ctx context.Context, in *a2a.MessageSendParams, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StreamResponse], error) {
	return openStream(ctx, c.cc, &ServiceDesc.Streams[0], methodSendStreamingMessage, in, opts)
}

func (c *a2aServiceClient) GetTask(ctx context.Context, in *a2a.TaskQueryParams, opts ...grpc.CallOption) (*a2a.Task, error) {
	return invoke[a2a.TaskQueryParams, a2a.Task](ctx, c.cc, methodGetTask, in, opts)
}

func (c *a2aServiceClient) CancelTask(ctx context.Context, in *a2a.TaskIDParams, opts ...grpc.CallOption) (*a2a.Task, error) {
	return invoke[a2a.TaskIDParams, a2a.Task](ctx, c.cc, methodCancelTask, in, opts)
}

func (c *a2aServiceClient) TaskSubscription(ctx context.Context, in *a2a.TaskIDParams, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StreamResponse], error) {
	return openStream(ctx, c.cc, &ServiceDesc.Streams[1], methodTaskSubscription, in, opts)
}

func (c *a2aServiceClient) CreateTaskPushNotificationConfig(ctx context.Context, in *a2a.TaskPushConfig, opts ...grpc.CallOption) (*a2a.TaskPushConfig, error) {
	return invoke[a2a.TaskPushConfig, a2a.TaskPushConfig](ctx, c.cc, methodSetPushConfig, in, opts)
}

func (c *a2aServiceClient) GetTaskPushNotificationConfig(ctx context.Context, in *a2a.GetTaskPushConfigParams, opts ...grpc.CallOption) (*a2a.TaskPushConfig, error) {
	return invoke[a2a.GetTaskPushConfigParams, a2a.TaskPushConfig](ctx, c.cc, methodGetPushConfig, in, opts)
}

func (c *a2aServiceClient) ListTaskPushNotificationConfig(ctx context.Context, in *a2a.ListTaskPushConfigParams, opts ...grpc.CallOption) (*ListTaskPushConfigResponse, error) {
	return invoke[a2a.ListTaskPushConfigParams, ListTaskPushConfigResponse](ctx, c.cc, methodListPushConfig, in, opts)
}

func (c *a2aServiceClient) DeleteTaskPushNotificationConfig(ctx context.Context, in *a2a.DeleteTaskPushConfigParams, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[a2a.DeleteTaskPushConfigParams, Empty](ctx, c.cc, methodDeletePushConfig, in, opts)
}
