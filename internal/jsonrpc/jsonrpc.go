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

// Package jsonrpc provides JSON-RPC 2.0 protocol implementation for A2A.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// JSON-RPC 2.0 protocol constants
const (
	Version = "2.0"

	// HTTP headers
	ContentJSON = "application/json"

	// JSON-RPC method names of the A2A protocol.
	MethodMessageSend      = "message/send"
	MethodMessageStream    = "message/stream"
	MethodTasksGet         = "tasks/get"
	MethodTasksCancel      = "tasks/cancel"
	MethodTasksResubscribe = "tasks/resubscribe"
	MethodPushConfigGet    = "tasks/pushNotificationConfig/get"
	MethodPushConfigSet    = "tasks/pushNotificationConfig/set"
	MethodPushConfigList   = "tasks/pushNotificationConfig/list"
	MethodPushConfigDelete = "tasks/pushNotificationConfig/delete"

	// VersionHeader is the HTTP header carrying the protocol version requested by the client.
	VersionHeader = "A2A-Version"
)

// Error represents a JSON-RPC 2.0 error object. Clients convert it back with [Error.ToA2AError]
// so that errors.Is works with the sentinels of the a2a package.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface for jsonrpcError.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

var codeToError = map[int]error{
	-32700: a2a.ErrParseError,
	-32600: a2a.ErrInvalidRequest,
	-32601: a2a.ErrMethodNotFound,
	-32602: a2a.ErrInvalidParams,
	-32603: a2a.ErrInternalError,
	-32000: a2a.ErrServerError,
	-32001: a2a.ErrTaskNotFound,
	-32002: a2a.ErrTaskNotCancelable,
	-32003: a2a.ErrPushNotificationNotSupported,
	-32004: a2a.ErrUnsupportedOperation,
	-32005: a2a.ErrUnsupportedContentType,
	-32006: a2a.ErrInvalidAgentResponse,
	-32009: a2a.ErrVersionNotSupported,
	-31401: a2a.ErrUnauthenticated,
	-31403: a2a.ErrUnauthorized,
}

// ToA2AError converts a JSON-RPC error to an [a2a.Error].
func (e *Error) ToA2AError() error {
	err, ok := codeToError[e.Code]
	if !ok {
		err = a2a.ErrInternalError
	}

	msg := e.Message
	if len(msg) == 0 {
		msg = err.Error()
	}

	result := a2a.NewError(err, msg)
	if len(e.Data) > 0 {
		result = result.WithDetails(e.Data)
	}
	return result
}

// ToJSONRPCError converts an error to a JSON-RPC [Error].
func ToJSONRPCError(err error) *Error {
	jsonrpcErr := &Error{}
	if errors.As(err, &jsonrpcErr) {
		return jsonrpcErr
	}

	var a2aErr *a2a.Error
	if errors.As(err, &a2aErr) {
		code := -32603
		if c, ok := codeFor(a2aErr.Err); ok {
			code = c
		}
		return &Error{
			Code:    code,
			Message: a2aErr.Error(),
			Data:    a2aErr.Details,
		}
	}

	if code, ok := codeFor(err); ok {
		return &Error{
			Code:    code,
			Message: codeToError[code].Error(),
			Data:    map[string]any{"error": err.Error()},
		}
	}
	return &Error{
		Code:    -32603,
		Message: a2a.ErrInternalError.Error(),
		Data:    map[string]any{"error": err.Error()},
	}
}

// codes lists protocol errors before the generic ones, so that an error wrapping both
// gets the more specific code.
var codes = []int{
	-32001, -32002, -32003, -32004, -32005, -32006, -32009, -31401, -31403,
	-32700, -32600, -32601, -32602, -32603, -32000,
}

func codeFor(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	for _, code := range codes {
		if errors.Is(err, codeToError[code]) {
			return code, true
		}
	}
	return 0, false
}

// IsValidID checks if the given ID is valid for a JSON-RPC request.
func IsValidID(id any) bool {
	if id == nil {
		return true
	}
	switch id.(type) {
	case string, float64:
		return true
	default:
		return false
	}
}

// ServerRequest represents a JSON-RPC 2.0 server request.
type ServerRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// ServerResponse represents a JSON-RPC 2.0 server response.
type ServerResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	// Done marks the last frame of a stream on transports which multiplex calls over one
	// connection. Never set on HTTP.
	Done bool `json:"done,omitempty"`
}

// ClientRequest represents a JSON-RPC 2.0 client request.
type ClientRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// ClientResponse represents a JSON-RPC 2.0 client response.
type ClientResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Done    bool            `json:"done,omitempty"`
}
