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

import "context"

type callContextKey struct{}

// CallContext holds information about the current server call. Transports create it with
// [NewCallContext] and the request handler makes it available to interceptors and to the
// [RequestContext] of the agent execution.
type CallContext struct {
	// User is set by authentication middleware or a [CallInterceptor].
	User *User

	method string
	params *ServiceParams
}

// NewCallContext attaches a new [CallContext] to the context.
func NewCallContext(ctx context.Context, params *ServiceParams) (context.Context, *CallContext) {
	if params == nil {
		params = NewServiceParams(nil)
	}
	callCtx := &CallContext{params: params}
	return context.WithValue(ctx, callContextKey{}, callCtx), callCtx
}

// CallContextFrom returns the [CallContext] attached to the context.
func CallContextFrom(ctx context.Context) (*CallContext, bool) {
	callCtx, ok := ctx.Value(callContextKey{}).(*CallContext)
	return callCtx, ok
}

// Method returns the name of the [RequestHandler] method being called.
func (cc *CallContext) Method() string {
	return cc.method
}

// ServiceParams returns the transport metadata of the request.
func (cc *CallContext) ServiceParams() *ServiceParams {
	return cc.params
}

// Request is the payload passed to [CallInterceptor.Before]. Interceptors can replace
// the payload with a value of the same type.
type Request struct {
	Payload any
}

// Response is passed to [CallInterceptor.After]. Interceptors can replace the payload or
// the error.
type Response struct {
	Payload any
	Err     error
}

// CallInterceptor can observe and modify calls of a [RequestHandler].
type CallInterceptor interface {
	// Before is invoked before the call. A non-nil result or error short-circuits the call.
	Before(ctx context.Context, callCtx *CallContext, req *Request) (context.Context, any, error)

	// After is invoked after the call, in the reverse order of Before.
	After(ctx context.Context, callCtx *CallContext, resp *Response) error
}

// PassthroughCallInterceptor can be embedded by interceptors which only implement one of the methods.
type PassthroughCallInterceptor struct{}

var _ CallInterceptor = PassthroughCallInterceptor{}

// Before implements [CallInterceptor].
func (PassthroughCallInterceptor) Before(ctx context.Context, callCtx *CallContext, req *Request) (context.Context, any, error) {
	return ctx, nil, nil
}

// After implements [CallInterceptor].
func (PassthroughCallInterceptor) After(ctx context.Context, callCtx *CallContext, resp *Response) error {
	return nil
}
