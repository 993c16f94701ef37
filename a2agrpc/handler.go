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

// Package a2agrpc provides the gRPC binding of the A2A protocol. Calls carry the JSON
// documents of the JSON-RPC binding encoded with a registered JSON codec, so the binding
// needs no generated code.
package a2agrpc

import (
	"context"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/grpcutil"
)

// Handler implements the gRPC service and delegates the actual method handling to [a2asrv.RequestHandler].
type Handler struct {
	handler a2asrv.RequestHandler
}

var _ A2AServiceServer = (*Handler)(nil)

// NewHandler is a [Handler] constructor function.
func NewHandler(handler a2asrv.RequestHandler) *Handler {
	return &Handler{handler: handler}
}

// RegisterWith registers as an A2AService implementation with the provided gRPC server.
func (h *Handler) RegisterWith(s grpc.ServiceRegistrar) {
	RegisterA2AServiceServer(s, h)
}

// SendMessage implements [A2AServiceServer].
func (h *Handler) SendMessage(ctx context.Context, req *a2a.MessageSendParams) (*SendMessageResponse, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	result, err := h.handler.OnSendMessage(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return &SendMessageResponse{Result: result}, nil
}

// SendStreamingMessage implements [A2AServiceServer].
func (h *Handler) SendStreamingMessage(req *a2a.MessageSendParams, stream grpc.ServerStreamingServer[StreamResponse]) error {
	ctx, err := withCallContext(stream.Context())
	if err != nil {
		return err
	}
	return sendEvents(h.handler.OnSendMessageStream(ctx, req), stream)
}

// GetTask implements [A2AServiceServer].
func (h *Handler) GetTask(ctx context.Context, req *a2a.TaskQueryParams) (*a2a.Task, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	task, err := h.handler.OnGetTask(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return task, nil
}

// CancelTask implements [A2AServiceServer].
func (h *Handler) CancelTask(ctx context.Context, req *a2a.TaskIDParams) (*a2a.Task, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	task, err := h.handler.OnCancelTask(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return task, nil
}

// TaskSubscription implements [A2AServiceServer].
func (h *Handler) TaskSubscription(req *a2a.TaskIDParams, stream grpc.ServerStreamingServer[StreamResponse]) error {
	ctx, err := withCallContext(stream.Context())
	if err != nil {
		return err
	}
	return sendEvents(h.handler.OnResubscribeToTask(ctx, req), stream)
}

// CreateTaskPushNotificationConfig implements [A2AServiceServer].
func (h *Handler) CreateTaskPushNotificationConfig(ctx context.Context, req *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	config, err := h.handler.OnSetTaskPushConfig(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return config, nil
}

// GetTaskPushNotificationConfig implements [A2AServiceServer].
func (h *Handler) GetTaskPushNotificationConfig(ctx context.Context, req *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	config, err := h.handler.OnGetTaskPushConfig(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return config, nil
}

// ListTaskPushNotificationConfig implements [A2AServiceServer].
func (h *Handler) ListTaskPushNotificationConfig(ctx context.Context, req *a2a.ListTaskPushConfigParams) (*ListTaskPushConfigResponse, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	configs, err := h.handler.OnListTaskPushConfig(ctx, req)
	if err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return &ListTaskPushConfigResponse{Configs: configs}, nil
}

// DeleteTaskPushNotificationConfig implements [A2AServiceServer].
func (h *Handler) DeleteTaskPushNotificationConfig(ctx context.Context, req *a2a.DeleteTaskPushConfigParams) (*Empty, error) {
	ctx, err := withCallContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.handler.OnDeleteTaskPushConfig(ctx, req); err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return &Empty{}, nil
}

func sendEvents(events iter.Seq2[a2a.Event, error], stream grpc.ServerStreamingServer[StreamResponse]) error {
	for event, err := range events {
		if err != nil {
			return grpcutil.ToGRPCError(err)
		}
		if err := stream.Send(&StreamResponse{Event: event}); err != nil {
			return status.Errorf(codes.Aborted, "failed to send response: %v", err)
		}
	}
	return nil
}

// withCallContext exposes the incoming metadata as service params and rejects calls for
// an unsupported protocol version.
func withCallContext(ctx context.Context) (context.Context, error) {
	var svcParams *a2asrv.ServiceParams
	if meta, ok := metadata.FromIncomingContext(ctx); ok {
		svcParams = a2asrv.NewServiceParams(meta)
	}
	ctx, callCtx := a2asrv.NewCallContext(ctx, svcParams)
	if err := a2asrv.CheckProtocolVersion(callCtx.ServiceParams().ProtocolVersion()); err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return ctx, nil
}
