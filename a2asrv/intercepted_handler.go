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

package a2asrv

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// InterceptedHandler implements [RequestHandler]. It can be used to attach call interceptors and initialize
// call context for every method of the wrapped handler.
type InterceptedHandler struct {
	// Handler is responsible for the actual processing of every call.
	Handler RequestHandler
	// Interceptors is a list of call interceptors which will be applied before and after each call.
	Interceptors []CallInterceptor
	// Logger is the logger which will be accessible from request scope context using log package
	// methods. Defaults to the logger of the call context or slog.Default().
	Logger *slog.Logger
}

var _ RequestHandler = (*InterceptedHandler)(nil)

type interceptBeforeResult[Req any, Resp any] struct {
	reqOverride   Req
	earlyResponse *Resp
	earlyErr      error
}

// OnGetTask implements RequestHandler.
func (h *InterceptedHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodTasksGet)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.TaskQueryParams) a2a.TaskID { return p.ID }))
	return doCall(ctx, callCtx, h, params, h.Handler.OnGetTask)
}

// OnCancelTask implements RequestHandler.
func (h *InterceptedHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodTasksCancel)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.TaskIDParams) a2a.TaskID { return p.ID }))
	return doCall(ctx, callCtx, h, params, h.Handler.OnCancelTask)
}

// OnSendMessage implements RequestHandler.
func (h *InterceptedHandler) OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodMessageSend)
	ctx = h.withLoggerContext(ctx, messageAttrs(params)...)
	return doCall(ctx, callCtx, h, params, h.Handler.OnSendMessage)
}

// OnSendMessageStream implements RequestHandler.
func (h *InterceptedHandler) OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodMessageStream)
		ctx = h.withLoggerContext(ctx, messageAttrs(params)...)
		streamCall(ctx, callCtx, h, params, h.Handler.OnSendMessageStream, yield)
	}
}

// OnResubscribeToTask implements RequestHandler.
func (h *InterceptedHandler) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodTasksResubscribe)
		ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.TaskIDParams) a2a.TaskID { return p.ID }))
		streamCall(ctx, callCtx, h, params, h.Handler.OnResubscribeToTask, yield)
	}
}

// OnGetTaskPushConfig implements RequestHandler.
func (h *InterceptedHandler) OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodPushConfigGet)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.GetTaskPushConfigParams) a2a.TaskID { return p.TaskID }))
	return doCall(ctx, callCtx, h, params, h.Handler.OnGetTaskPushConfig)
}

// OnListTaskPushConfig implements RequestHandler.
func (h *InterceptedHandler) OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodPushConfigList)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.ListTaskPushConfigParams) a2a.TaskID { return p.TaskID }))
	return doCall(ctx, callCtx, h, params, h.Handler.OnListTaskPushConfig)
}

// OnSetTaskPushConfig implements RequestHandler.
func (h *InterceptedHandler) OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodPushConfigSet)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.TaskPushConfig) a2a.TaskID { return p.TaskID }))
	return doCall(ctx, callCtx, h, params, h.Handler.OnSetTaskPushConfig)
}

// OnDeleteTaskPushConfig implements RequestHandler.
func (h *InterceptedHandler) OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	ctx, callCtx := attachMethodCallContext(ctx, jsonrpc.MethodPushConfigDelete)
	ctx = h.withLoggerContext(ctx, taskIDAttr(params, func(p *a2a.DeleteTaskPushConfigParams) a2a.TaskID { return p.TaskID }))
	_, err := doCall(ctx, callCtx, h, params, func(ctx context.Context, p *a2a.DeleteTaskPushConfigParams) (struct{}, error) {
		return struct{}{}, h.Handler.OnDeleteTaskPushConfig(ctx, p)
	})
	return err
}

func interceptBefore[Req any, Resp any](ctx context.Context, h *InterceptedHandler, callCtx *CallContext, payload Req) (context.Context, interceptBeforeResult[Req, Resp]) {
	request := &Request{Payload: payload}
	outcome := interceptBeforeResult[Req, Resp]{}

	for i, interceptor := range h.Interceptors {
		localCtx, result, err := interceptor.Before(ctx, callCtx, request)
		if err != nil || result != nil {
			var typedResult Resp
			if result != nil {
				r, ok := result.(Resp)
				if !ok {
					outcome.earlyErr = fmt.Errorf("result type changed from %T to %T", typedResult, result)
					return ctx, outcome
				}
				typedResult = r
			}
			resp, err := interceptAfter(ctx, h.Interceptors[:i+1], callCtx, typedResult, err)
			outcome.earlyResponse = &resp
			outcome.earlyErr = err
			return ctx, outcome
		}
		ctx = localCtx
	}

	typed, ok := request.Payload.(Req)
	if !ok {
		outcome.earlyErr = fmt.Errorf("payload type changed from %T to %T", payload, request.Payload)
		return ctx, outcome
	}
	outcome.reqOverride = typed
	return ctx, outcome
}

func interceptAfter[T any](ctx context.Context, interceptors []CallInterceptor, callCtx *CallContext, payload T, responseErr error) (T, error) {
	response := &Response{Payload: payload, Err: responseErr}

	var zero T
	for i := len(interceptors) - 1; i >= 0; i-- {
		if err := interceptors[i].After(ctx, callCtx, response); err != nil {
			return zero, err
		}
	}

	if response.Payload == nil {
		return zero, response.Err
	}
	typed, ok := response.Payload.(T)
	if !ok {
		return zero, fmt.Errorf("payload type changed from %T to %T", payload, response.Payload)
	}
	return typed, response.Err
}

func doCall[Req any, Resp any](
	ctx context.Context, callCtx *CallContext, h *InterceptedHandler, req Req,
	call func(context.Context, Req) (Resp, error),
) (Resp, error) {
	ctx, res := interceptBefore[Req, Resp](ctx, h, callCtx, req)
	if res.earlyErr != nil {
		var zero Resp
		return zero, res.earlyErr
	}
	if res.earlyResponse != nil {
		return *res.earlyResponse, nil
	}
	response, err := call(ctx, res.reqOverride)
	return interceptAfter(ctx, h.Interceptors, callCtx, response, err)
}

// streamCall applies the interceptors to every event of a streaming call.
func streamCall[Req any](
	ctx context.Context, callCtx *CallContext, h *InterceptedHandler, req Req,
	call func(context.Context, Req) iter.Seq2[a2a.Event, error],
	yield func(a2a.Event, error) bool,
) {
	ctx, res := interceptBefore[Req, a2a.Event](ctx, h, callCtx, req)
	if res.earlyErr != nil {
		yield(nil, res.earlyErr)
		return
	}
	if res.earlyResponse != nil {
		yield(*res.earlyResponse, nil)
		return
	}
	for event, err := range call(ctx, res.reqOverride) {
		event, err = interceptAfter(ctx, h.Interceptors, callCtx, event, err)
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(event, nil) {
			return
		}
	}
}

// withLoggerContext attaches a logger with the call attributes to the context.
func (h *InterceptedHandler) withLoggerContext(ctx context.Context, attrs ...any) context.Context {
	logger := h.Logger
	if logger == nil {
		logger = log.LoggerFrom(ctx)
	}
	attrs = append(attrs, slog.String("request_id", uuid.NewString()))
	if callCtx, ok := CallContextFrom(ctx); ok {
		attrs = append(attrs, slog.String("method", callCtx.Method()))
	}
	return log.AttachLogger(ctx, logger.With(attrs...))
}

// attachMethodCallContext sets the method of the CallContext created by the transport, or
// creates one when the handler is called directly.
func attachMethodCallContext(ctx context.Context, method string) (context.Context, *CallContext) {
	callCtx, ok := CallContextFrom(ctx)
	if !ok {
		ctx, callCtx = NewCallContext(ctx, nil)
	}
	callCtx.method = method
	return ctx, callCtx
}

func taskIDAttr[P any](params *P, id func(*P) a2a.TaskID) slog.Attr {
	if params == nil {
		return slog.String("task_id", "")
	}
	return slog.String("task_id", string(id(params)))
}

func messageAttrs(params *a2a.MessageSendParams) []any {
	if params == nil || params.Message == nil {
		return nil
	}
	msg := params.Message
	return []any{
		slog.String("message_id", msg.ID),
		slog.String("task_id", string(msg.TaskID)),
		slog.String("context_id", msg.ContextID),
	}
}
