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
	"errors"
	"io"
	"iter"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2aclient"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/grpcutil"
)

// WithGRPCTransport create a gRPC transport implementation which will use the provided [grpc.DialOption]s during connection establishment.
func WithGRPCTransport(opts ...grpc.DialOption) a2aclient.FactoryOption {
	return a2aclient.WithTransport(
		a2a.TransportProtocolGRPC,
		a2aclient.TransportFactoryFn(func(ctx context.Context, card *a2a.AgentCard, iface a2a.AgentInterface) (a2aclient.Transport, error) {
			conn, err := grpc.NewClient(iface.URL, opts...)
			if err != nil {
				return nil, err
			}
			return NewGRPCTransport(conn), nil
		}),
	)
}

// NewGRPCTransport exposes a method for direct A2A gRPC protocol handler.
func NewGRPCTransport(conn *grpc.ClientConn) a2aclient.Transport {
	return &grpcTransport{
		client:      NewA2AServiceClient(conn),
		closeConnFn: conn.Close,
	}
}

// NewGRPCTransportFromClient creates a gRPC transport where the connection is managed
// externally and encapsulated in the service client. The transport's Destroy method is a no-op.
func NewGRPCTransportFromClient(client A2AServiceClient) a2aclient.Transport {
	return &grpcTransport{
		client:      client,
		closeConnFn: func() error { return nil },
	}
}

// grpcTransport implements Transport by delegating to A2AServiceClient.
type grpcTransport struct {
	client      A2AServiceClient
	closeConnFn func() error
}

var _ a2aclient.Transport = (*grpcTransport)(nil)

func (c *grpcTransport) GetTask(ctx context.Context, params a2aclient.ServiceParams, req *a2a.TaskQueryParams) (*a2a.Task, error) {
	task, err := c.client.GetTask(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return task, nil
}

func (c *grpcTransport) CancelTask(ctx context.Context, params a2aclient.ServiceParams, req *a2a.TaskIDParams) (*a2a.Task, error) {
	task, err := c.client.CancelTask(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return task, nil
}

func (c *grpcTransport) SendMessage(ctx context.Context, params a2aclient.ServiceParams, req *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	resp, err := c.client.SendMessage(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return resp.Result, nil
}

func (c *grpcTransport) ResubscribeToTask(ctx context.Context, params a2aclient.ServiceParams, req *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		stream, err := c.client.TaskSubscription(withGRPCMetadata(ctx, params), req)
		if err != nil {
			yield(nil, grpcutil.FromGRPCError(err))
			return
		}
		drainEventStream(stream, yield)
	}
}

func (c *grpcTransport) SendStreamingMessage(ctx context.Context, params a2aclient.ServiceParams, req *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		stream, err := c.client.SendStreamingMessage(withGRPCMetadata(ctx, params), req)
		if err != nil {
			yield(nil, grpcutil.FromGRPCError(err))
			return
		}
		drainEventStream(stream, yield)
	}
}

func drainEventStream(stream grpc.ServerStreamingClient[StreamResponse], yield func(a2a.Event, error) bool) {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, grpcutil.FromGRPCError(err))
			return
		}
		if !yield(resp.Event, nil) {
			return
		}
	}
}

func (c *grpcTransport) GetTaskPushConfig(ctx context.Context, params a2aclient.ServiceParams, req *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	config, err := c.client.GetTaskPushNotificationConfig(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return config, nil
}

func (c *grpcTransport) ListTaskPushConfig(ctx context.Context, params a2aclient.ServiceParams, req *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	resp, err := c.client.ListTaskPushNotificationConfig(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return resp.Configs, nil
}

func (c *grpcTransport) SetTaskPushConfig(ctx context.Context, params a2aclient.ServiceParams, req *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	config, err := c.client.CreateTaskPushNotificationConfig(withGRPCMetadata(ctx, params), req)
	if err != nil {
		return nil, grpcutil.FromGRPCError(err)
	}
	return config, nil
}

func (c *grpcTransport) DeleteTaskPushConfig(ctx context.Context, params a2aclient.ServiceParams, req *a2a.DeleteTaskPushConfigParams) error {
	_, err := c.client.DeleteTaskPushNotificationConfig(withGRPCMetadata(ctx, params), req)
	return grpcutil.FromGRPCError(err)
}

func (c *grpcTransport) Destroy() error {
	return c.closeConnFn()
}

func withGRPCMetadata(ctx context.Context, params a2aclient.ServiceParams) context.Context {
	if len(params) == 0 {
		return ctx
	}
	meta := metadata.MD{}
	for k, vals := range params {
		meta[strings.ToLower(k)] = vals
	}
	return metadata.NewOutgoingContext(ctx, meta)
}
