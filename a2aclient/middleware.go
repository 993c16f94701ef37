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

package a2aclient

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ServiceParams are the per-call parameters which travel next to the payload, such as the
// protocol version or credentials. Keys are stored lower-cased. The JSON-RPC and websocket
// transports send them as HTTP headers.
type ServiceParams map[string][]string

// Get returns the values of the key, or nil.
func (sp ServiceParams) Get(key string) []string {
	return sp[strings.ToLower(key)]
}

// Set replaces the values of the key.
func (sp ServiceParams) Set(key string, vals ...string) {
	sp[strings.ToLower(key)] = slices.Clone(vals)
}

// Append adds the values which are not yet associated with the key.
func (sp ServiceParams) Append(key string, vals ...string) {
	key = strings.ToLower(key)
	current := sp[key]
	for _, v := range vals {
		if !slices.Contains(current, v) {
			current = append(current, v)
		}
	}
	sp[key] = current
}

func (sp ServiceParams) clone() ServiceParams {
	if sp == nil {
		return nil
	}
	out := make(ServiceParams, len(sp))
	for k, vals := range sp {
		out[k] = slices.Clone(vals)
	}
	return out
}

// writeHeader adds every value to h. Values already present in h are kept.
func (sp ServiceParams) writeHeader(h http.Header) {
	for k, vals := range sp {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
}

type serviceParamsKey struct{}

// AttachServiceParams returns a context carrying params merged into the ones already
// attached to ctx. The client hands them to [CallInterceptor]s and then to the [Transport].
func AttachServiceParams(ctx context.Context, params ServiceParams) context.Context {
	merged := serviceParamsCloneFrom(ctx)
	for k, vals := range params {
		merged.Append(k, vals...)
	}
	return context.WithValue(ctx, serviceParamsKey{}, merged)
}

// serviceParamsCloneFrom returns a copy interceptors are free to modify.
func serviceParamsCloneFrom(ctx context.Context) ServiceParams {
	if params, ok := ctx.Value(serviceParamsKey{}).(ServiceParams); ok {
		return params.clone()
	}
	return ServiceParams{}
}

// Request is a call as seen by [CallInterceptor.Before].
type Request struct {
	// Method is the JSON-RPC method name, e.g. "message/send".
	Method string
	// BaseURL of the agent the client talks to.
	BaseURL string
	// ServiceParams which will be sent with the call. Interceptors can modify them.
	ServiceParams ServiceParams
	// Card the client was created from. Nil for clients created from a URL.
	Card *a2a.AgentCard
	// Payload is the request params, e.g. *a2a.MessageSendParams. An interceptor can
	// replace it with a value of the same type.
	Payload any
}

// Response is a call outcome as seen by [CallInterceptor.After].
type Response struct {
	// Method is the JSON-RPC method name.
	Method string
	// BaseURL of the agent the client talks to.
	BaseURL string
	// Err is the call error, nil on success.
	Err error
	// ServiceParams which were sent with the call.
	ServiceParams ServiceParams
	// Card the client was created from. Nil for clients created from a URL.
	Card *a2a.AgentCard
	// Payload is the result, e.g. a2a.SendMessageResult. Nil when Err is set or the method
	// has no result. An interceptor can replace it with a value of the same type.
	Payload any
}

// CallInterceptor observes and modifies the calls made by a [Client]. Before hooks run in
// the order interceptors were attached and After hooks run in reverse.
type CallInterceptor interface {
	// Before runs ahead of the transport call. The returned context is passed to the
	// remaining interceptors and the transport. A non-nil result or error short-circuits
	// the call and is delivered to the After hooks of the interceptors which already ran.
	Before(ctx context.Context, req *Request) (context.Context, any, error)

	// After runs once the call returned. A returned error replaces the call outcome.
	After(ctx context.Context, resp *Response) error
}

// PassthroughInterceptor is a no-op [CallInterceptor] to embed when only one hook is needed.
type PassthroughInterceptor struct{}

var _ CallInterceptor = PassthroughInterceptor{}

// Before implements [CallInterceptor].
func (PassthroughInterceptor) Before(ctx context.Context, req *Request) (context.Context, any, error) {
	return ctx, nil, nil
}

// After implements [CallInterceptor].
func (PassthroughInterceptor) After(ctx context.Context, resp *Response) error {
	return nil
}
