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

package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

func TestErrorCodes_SurviveTheWire(t *testing.T) {
	for code, sentinel := range codeToError {
		t.Run(fmt.Sprintf("%d", code), func(t *testing.T) {
			serverErr := ToJSONRPCError(fmt.Errorf("handler: %w", sentinel))
			if serverErr.Code != code {
				t.Fatalf("ToJSONRPCError() code = %d, want %d", serverErr.Code, code)
			}

			data, err := json.Marshal(ServerResponse{JSONRPC: Version, ID: "1", Error: serverErr})
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			var resp ClientResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}

			clientErr := resp.Error.ToA2AError()
			if !errors.Is(clientErr, sentinel) {
				t.Errorf("ToA2AError() = %v, want it to match %v", clientErr, sentinel)
			}
		})
	}
}

func TestToJSONRPCError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want *Error
	}{
		{
			name: "jsonrpc error is kept",
			err:  fmt.Errorf("call: %w", &Error{Code: -32001, Message: "gone"}),
			want: &Error{Code: -32001, Message: "gone"},
		},
		{
			name: "task not found",
			err:  fmt.Errorf("%w: t1", a2a.ErrTaskNotFound),
			want: &Error{Code: -32001, Message: a2a.ErrTaskNotFound.Error(), Data: map[string]any{"error": "task not found: t1"}},
		},
		{
			name: "protocol error wins over invalid params",
			err:  fmt.Errorf("%w: %w", a2a.ErrInvalidParams, a2a.ErrTaskNotCancelable),
			want: &Error{Code: -32002, Message: a2a.ErrTaskNotCancelable.Error(), Data: map[string]any{"error": "invalid params: task cannot be canceled"}},
		},
		{
			name: "unknown failure is internal",
			err:  fmt.Errorf("save t1: %w", errors.New("disk full")),
			want: &Error{Code: -32603, Message: a2a.ErrInternalError.Error(), Data: map[string]any{"error": "save t1: disk full"}},
		},
		{
			name: "a2a error keeps message and details",
			err:  a2a.NewError(a2a.ErrUnauthorized, "tenant mismatch").WithDetails(map[string]any{"tenant": "acme"}),
			want: &Error{Code: -31403, Message: "tenant mismatch", Data: map[string]any{"tenant": "acme"}},
		},
		{
			name: "a2a error with a foreign cause",
			err:  a2a.NewError(errors.New("quota"), "try later"),
			want: &Error{Code: -32603, Message: "try later"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ToJSONRPCError(tc.err)); diff != "" {
				t.Errorf("ToJSONRPCError() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestError_ToA2AError(t *testing.T) {
	testCases := []struct {
		name        string
		err         *Error
		wantErr     error
		wantMessage string
		wantDetails map[string]any
	}{
		{
			name:        "message from the wire",
			err:         &Error{Code: -32001, Message: "no such task"},
			wantErr:     a2a.ErrTaskNotFound,
			wantMessage: "no such task",
		},
		{
			name:        "empty message falls back to the sentinel",
			err:         &Error{Code: -32004},
			wantErr:     a2a.ErrUnsupportedOperation,
			wantMessage: a2a.ErrUnsupportedOperation.Error(),
		},
		{
			name:        "unknown code",
			err:         &Error{Code: -1, Message: "teapot", Data: map[string]any{"brew": "tea"}},
			wantErr:     a2a.ErrInternalError,
			wantMessage: "teapot",
			wantDetails: map[string]any{"brew": "tea"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.err.ToA2AError()
			if !errors.Is(got, tc.wantErr) {
				t.Fatalf("ToA2AError() = %v, want %v", got, tc.wantErr)
			}
			var a2aErr *a2a.Error
			if !errors.As(got, &a2aErr) {
				t.Fatalf("ToA2AError() = %T, want *a2a.Error", got)
			}
			if a2aErr.Error() != tc.wantMessage {
				t.Errorf("ToA2AError() message = %q, want %q", a2aErr.Error(), tc.wantMessage)
			}
			if diff := cmp.Diff(tc.wantDetails, a2aErr.Details); diff != "" {
				t.Errorf("ToA2AError() details (-want +got):\n%s", diff)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	plain := &Error{Code: -32601, Message: "Method not found"}
	if got, want := plain.Error(), "jsonrpc error -32601: Method not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	withData := &Error{Code: -32602, Message: "Invalid params", Data: map[string]any{"field": "id"}}
	if got, want := withData.Error(), "jsonrpc error -32602: Invalid params (data: map[field:id])"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsValidID(t *testing.T) {
	testCases := []struct {
		raw  string
		want bool
	}{
		{raw: `"abc"`, want: true},
		{raw: `42`, want: true},
		{raw: `null`, want: true},
		{raw: `true`, want: false},
		{raw: `{"id":1}`, want: false},
		{raw: `[1]`, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			var req ServerRequest
			if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"tasks/get","id":`+tc.raw+`}`), &req); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if got := IsValidID(req.ID); got != tc.want {
				t.Errorf("IsValidID(%s) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestServerResponse_DoneFrame(t *testing.T) {
	testCases := []struct {
		name string
		resp ServerResponse
		want string
	}{
		{
			name: "http frame",
			resp: ServerResponse{JSONRPC: Version, ID: "1", Result: map[string]string{"kind": "task"}},
			want: `{"jsonrpc":"2.0","id":"1","result":{"kind":"task"}}`,
		},
		{
			name: "last multiplexed frame",
			resp: ServerResponse{JSONRPC: Version, ID: "1", Done: true},
			want: `{"jsonrpc":"2.0","id":"1","done":true}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.resp)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("json.Marshal() = %s, want %s", data, tc.want)
			}
		})
	}
}
