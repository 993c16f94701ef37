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
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/sse"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

type jsonrpcHandler struct {
	handler           RequestHandler
	keepAliveInterval time.Duration
	panicHandler      func(r any) error
}

// JSONRPCHandlerOption is a functional option for configuring the JSONRPC handler.
type JSONRPCHandlerOption func(*jsonrpcHandler)

// WithKeepAlive enables SSE keep-alive messages at the specified interval.
// Keep-alive messages prevent API gateways from dropping idle connections.
// If interval is 0 or negative, keep-alive is disabled (default behavior).
func WithKeepAlive(interval time.Duration) JSONRPCHandlerOption {
	return func(h *jsonrpcHandler) {
		h.keepAliveInterval = interval
	}
}

// WithPanicHandler sets a custom panic handler for the JSONRPC handler.
// This gives the ability to recovery from panic by returning an error to the client.
func WithPanicHandler(handler func(r any) error) JSONRPCHandlerOption {
	return func(h *jsonrpcHandler) {
		h.panicHandler = handler
	}
}

// NewJSONRPCHandler creates an [http.Handler] implementation for serving A2A-protocol over JSONRPC.
func NewJSONRPCHandler(handler RequestHandler, options ...JSONRPCHandlerOption) http.Handler {
	h := &jsonrpcHandler{handler: handler}
	for _, option := range options {
		option(h)
	}
	return h
}

func (h *jsonrpcHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	ctx, callCtx := NewCallContext(ctx, serviceParamsFromHeader(req.Header))

	rw.Header().Set("Content-Type", jsonrpc.ContentJSON)
	if req.Method != http.MethodPost {
		h.writeJSONRPCError(ctx, rw, a2a.ErrInvalidRequest, nil)
		return
	}

	defer func() {
		if err := req.Body.Close(); err != nil {
			log.Error(ctx, "failed to close request body", err)
		}
	}()

	var payload jsonrpc.ServerRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		h.writeJSONRPCError(ctx, rw, handleUnmarshalError(err), nil)
		return
	}

	if !jsonrpc.IsValidID(payload.ID) {
		h.writeJSONRPCError(ctx, rw, a2a.ErrInvalidRequest, nil)
		return
	}

	if payload.JSONRPC != jsonrpc.Version {
		h.writeJSONRPCError(ctx, rw, a2a.ErrInvalidRequest, payload.ID)
		return
	}

	if err := CheckProtocolVersion(callCtx.ServiceParams().ProtocolVersion()); err != nil {
		h.writeJSONRPCError(ctx, rw, err, payload.ID)
		return
	}

	if isStreamingMethod(payload.Method) {
		h.handleStreamingRequest(ctx, rw, &payload)
	} else {
		h.handleRequest(ctx, rw, &payload)
	}
}

// CheckProtocolVersion accepts requests without a version header and requests for any
// version with the same major and minor as the one served. Transports implemented outside
// of this package call it before dispatching a request.
func CheckProtocolVersion(requested string) error {
	if requested == "" {
		return nil
	}
	v := requested
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: malformed version %q", a2a.ErrVersionNotSupported, requested)
	}
	if semver.MajorMinor(v) != semver.MajorMinor("v"+string(a2a.Version)) {
		return fmt.Errorf("%w: %q, supported: %q", a2a.ErrVersionNotSupported, requested, a2a.Version)
	}
	return nil
}

func (h *jsonrpcHandler) handleRequest(ctx context.Context, rw http.ResponseWriter, req *jsonrpc.ServerRequest) {
	defer func() {
		if r := recover(); r != nil {
			if h.panicHandler == nil {
				panic(r)
			}
			err := h.panicHandler(r)
			if err != nil {
				h.writeJSONRPCError(ctx, rw, err, req.ID)
				return
			}
		}
	}()

	result, err := h.invoke(ctx, req)
	if err != nil {
		h.writeJSONRPCError(ctx, rw, err, req.ID)
		return
	}

	resp := jsonrpc.ServerResponse{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result}
	if err := json.NewEncoder(rw).Encode(resp); err != nil {
		log.Error(ctx, "failed to encode response", err)
	}
}

// invoke dispatches a non-streaming request to the handler.
func (h *jsonrpcHandler) invoke(ctx context.Context, req *jsonrpc.ServerRequest) (any, error) {
	switch req.Method {
	case jsonrpc.MethodTasksGet:
		return h.onGetTask(ctx, req.Params)
	case jsonrpc.MethodMessageSend:
		return h.onSendMessage(ctx, req.Params)
	case jsonrpc.MethodTasksCancel:
		return h.onCancelTask(ctx, req.Params)
	case jsonrpc.MethodPushConfigGet:
		return h.onGetTaskPushConfig(ctx, req.Params)
	case jsonrpc.MethodPushConfigList:
		configs, err := h.onListTaskPushConfig(ctx, req.Params)
		if configs == nil {
			configs = []*a2a.TaskPushConfig{}
		}
		return configs, err
	case jsonrpc.MethodPushConfigSet:
		return h.onSetTaskPushConfig(ctx, req.Params)
	case jsonrpc.MethodPushConfigDelete:
		return json.RawMessage("null"), h.onDeleteTaskPushConfig(ctx, req.Params)
	case "":
		return nil, a2a.ErrInvalidRequest
	default:
		return nil, a2a.ErrMethodNotFound
	}
}

// events dispatches a streaming request to the handler.
func (h *jsonrpcHandler) events(ctx context.Context, req *jsonrpc.ServerRequest) iter.Seq2[a2a.Event, error] {
	switch req.Method {
	case jsonrpc.MethodTasksResubscribe:
		return h.onResubscribeToTask(ctx, req.Params)
	case jsonrpc.MethodMessageStream:
		return h.onSendMessageStream(ctx, req.Params)
	default:
		return func(yield func(a2a.Event, error) bool) { yield(nil, a2a.ErrMethodNotFound) }
	}
}

func isStreamingMethod(method string) bool {
	return method == jsonrpc.MethodTasksResubscribe || method == jsonrpc.MethodMessageStream
}

func (h *jsonrpcHandler) handleStreamingRequest(ctx context.Context, rw http.ResponseWriter, req *jsonrpc.ServerRequest) {
	sseWriter, err := sse.NewWriter(rw)
	if err != nil {
		h.writeJSONRPCError(ctx, rw, err, req.ID)
		return
	}

	sseWriter.WriteHeaders()

	sseChan, panicChan := make(chan []byte), make(chan error)
	requestCtx, cancelExecCtx := context.WithCancel(ctx)
	defer cancelExecCtx()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				select {
				case panicChan <- fmt.Errorf("%v\n%s", r, debug.Stack()):
				case <-requestCtx.Done():
				}
			} else {
				close(sseChan)
			}
		}()

		eventSeqToSSEDataStream(requestCtx, req, sseChan, h.events(requestCtx, req))
	}()

	var keepAliveChan <-chan time.Time
	if h.keepAliveInterval > 0 {
		keepAliveTicker := time.NewTicker(h.keepAliveInterval)
		defer keepAliveTicker.Stop()
		keepAliveChan = keepAliveTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-panicChan:
			if h.panicHandler == nil {
				panic(err)
			}
			data, ok := marshalJSONRPCError(req, h.panicHandler(err))
			if !ok {
				log.Error(ctx, "failed to marshal error response", err)
				return
			}
			if err := sseWriter.WriteData(ctx, data); err != nil {
				log.Error(ctx, "failed to write an event", err)
			}
			return
		case <-keepAliveChan:
			if err := sseWriter.WriteKeepAlive(ctx); err != nil {
				log.Error(ctx, "failed to write keep-alive", err)
				return
			}
		case data, ok := <-sseChan:
			if !ok {
				return
			}
			if err := sseWriter.WriteData(ctx, data); err != nil {
				log.Error(ctx, "failed to write an event", err)
				return
			}
		}
	}
}

// eventSeqToSSEDataStream serializes every event into a JSON-RPC response frame. An error
// terminates the stream with an error frame.
func eventSeqToSSEDataStream(ctx context.Context, req *jsonrpc.ServerRequest, sseChan chan []byte, events iter.Seq2[a2a.Event, error]) {
	handleError := func(err error) {
		bytes, ok := marshalJSONRPCError(req, err)
		if !ok {
			log.Error(ctx, "failed to marshal error response", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case sseChan <- bytes:
		}
	}

	for event, err := range events {
		if err != nil {
			handleError(err)
			return
		}

		resp := jsonrpc.ServerResponse{JSONRPC: jsonrpc.Version, ID: req.ID, Result: event}
		bytes, err := json.Marshal(resp)
		if err != nil {
			handleError(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case sseChan <- bytes:
		}
	}
}

func (h *jsonrpcHandler) onGetTask(ctx context.Context, raw json.RawMessage) (*a2a.Task, error) {
	var query a2a.TaskQueryParams
	if err := unmarshalParams(raw, &query); err != nil {
		return nil, err
	}
	return h.handler.OnGetTask(ctx, &query)
}

func (h *jsonrpcHandler) onCancelTask(ctx context.Context, raw json.RawMessage) (*a2a.Task, error) {
	var id a2a.TaskIDParams
	if err := unmarshalParams(raw, &id); err != nil {
		return nil, err
	}
	return h.handler.OnCancelTask(ctx, &id)
}

func (h *jsonrpcHandler) onSendMessage(ctx context.Context, raw json.RawMessage) (a2a.SendMessageResult, error) {
	var message a2a.MessageSendParams
	if err := unmarshalParams(raw, &message); err != nil {
		return nil, err
	}
	return h.handler.OnSendMessage(ctx, &message)
}

func (h *jsonrpcHandler) onResubscribeToTask(ctx context.Context, raw json.RawMessage) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		var id a2a.TaskIDParams
		if err := unmarshalParams(raw, &id); err != nil {
			yield(nil, err)
			return
		}
		for event, err := range h.handler.OnResubscribeToTask(ctx, &id) {
			if !yield(event, err) {
				return
			}
		}
	}
}

func (h *jsonrpcHandler) onSendMessageStream(ctx context.Context, raw json.RawMessage) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		var message a2a.MessageSendParams
		if err := unmarshalParams(raw, &message); err != nil {
			yield(nil, err)
			return
		}
		for event, err := range h.handler.OnSendMessageStream(ctx, &message) {
			if !yield(event, err) {
				return
			}
		}
	}
}

func (h *jsonrpcHandler) onGetTaskPushConfig(ctx context.Context, raw json.RawMessage) (*a2a.TaskPushConfig, error) {
	var params a2a.GetTaskPushConfigParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	return h.handler.OnGetTaskPushConfig(ctx, &params)
}

func (h *jsonrpcHandler) onListTaskPushConfig(ctx context.Context, raw json.RawMessage) ([]*a2a.TaskPushConfig, error) {
	var params a2a.ListTaskPushConfigParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	return h.handler.OnListTaskPushConfig(ctx, &params)
}

func (h *jsonrpcHandler) onSetTaskPushConfig(ctx context.Context, raw json.RawMessage) (*a2a.TaskPushConfig, error) {
	var params a2a.TaskPushConfig
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	return h.handler.OnSetTaskPushConfig(ctx, &params)
}

func (h *jsonrpcHandler) onDeleteTaskPushConfig(ctx context.Context, raw json.RawMessage) error {
	var params a2a.DeleteTaskPushConfigParams
	if err := unmarshalParams(raw, &params); err != nil {
		return err
	}
	return h.handler.OnDeleteTaskPushConfig(ctx, &params)
}

// unmarshalParams rejects absent params, which every A2A method requires.
func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: params are required", a2a.ErrInvalidParams)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: %w", a2a.ErrParseError, err)
		}
		return fmt.Errorf("%w: %w", a2a.ErrInvalidParams, err)
	}
	return nil
}

func marshalJSONRPCError(req *jsonrpc.ServerRequest, err error) ([]byte, bool) {
	jsonrpcErr := jsonrpc.ToJSONRPCError(err)
	resp := jsonrpc.ServerResponse{JSONRPC: jsonrpc.Version, ID: req.ID, Error: jsonrpcErr}
	bytes, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}
	return bytes, true
}

// handleUnmarshalError classifies a failure to decode the request envelope. Params are
// decoded later, so a well-formed body with fields of the wrong type is an invalid request.
func handleUnmarshalError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %w", a2a.ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %w", a2a.ErrParseError, err)
}

func (h *jsonrpcHandler) writeJSONRPCError(ctx context.Context, rw http.ResponseWriter, err error, reqID any) {
	jsonrpcErr := jsonrpc.ToJSONRPCError(err)
	resp := jsonrpc.ServerResponse{JSONRPC: jsonrpc.Version, Error: jsonrpcErr, ID: reqID}
	if err := json.NewEncoder(rw).Encode(resp); err != nil {
		log.Error(ctx, "failed to send error response", err)
	}
}
