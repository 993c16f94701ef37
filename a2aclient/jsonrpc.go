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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/sse"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// rpcCaller carries JSON-RPC requests. Both methods return the raw "result" of the response
// frames and convert error frames with [jsonrpc.Error.ToA2AError].
type rpcCaller interface {
	call(ctx context.Context, method string, params ServiceParams, req any) (json.RawMessage, error)
	stream(ctx context.Context, method string, params ServiceParams, req any) iter.Seq2[json.RawMessage, error]
	close() error
}

// rpcTransport implements [Transport] by decoding the results of an [rpcCaller].
type rpcTransport struct {
	caller rpcCaller
}

var _ Transport = (*rpcTransport)(nil)

// WithJSONRPCTransport returns a Client factory option that enables JSON-RPC transport support.
// When applied, the client will use JSON-RPC 2.0 over HTTP for all A2A protocol communication,
// with streaming responses delivered as Server-Sent Events.
func WithJSONRPCTransport(client *http.Client) FactoryOption {
	return WithTransport(
		a2a.TransportProtocolJSONRPC,
		TransportFactoryFn(func(ctx context.Context, card *a2a.AgentCard, iface a2a.AgentInterface) (Transport, error) {
			return NewJSONRPCTransport(iface.URL, client), nil
		}),
	)
}

// NewJSONRPCTransport creates a new JSON-RPC transport for A2A protocol communication.
// By default, an HTTP client will use a 3-minute timeout.
// For production deployments, provide a client with appropriate timeout, retry policy,
// and connection pooling configured for your requirements.
//
// To create an A2A client with custom HTTP client use WithJSONRPCTransport option:
//
//	httpClient := &http.Client{Timeout: 5 * time.Minute}
//	client := NewFromCard(ctx, card, WithJSONRPCTransport(httpClient))
func NewJSONRPCTransport(url string, client *http.Client) Transport {
	c := &httpCaller{url: url, httpClient: client}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	return &rpcTransport{caller: c}
}

// httpCaller sends every request as an HTTP POST.
type httpCaller struct {
	url        string
	httpClient *http.Client
}

func (c *httpCaller) newHTTPRequest(ctx context.Context, method string, params ServiceParams, payload any) (*http.Request, error) {
	req := jsonrpc.ClientRequest{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  payload,
		ID:      uuid.NewString(),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", jsonrpc.ContentJSON)
	params.writeHeader(httpReq.Header)

	return httpReq, nil
}

func (c *httpCaller) call(ctx context.Context, method string, params ServiceParams, req any) (json.RawMessage, error) {
	httpReq, err := c.newHTTPRequest(ctx, method, params, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			log.Error(ctx, "failed to close http response body", err)
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %s", httpResp.Status)
	}

	var resp jsonrpc.ClientResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Error != nil {
		return nil, resp.Error.ToA2AError()
	}

	return resp.Result, nil
}

func (c *httpCaller) stream(ctx context.Context, method string, params ServiceParams, req any) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		httpReq, err := c.newHTTPRequest(ctx, method, params, req)
		if err != nil {
			yield(nil, err)
			return
		}
		httpReq.Header.Set("Accept", sse.ContentEventStream)

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			yield(nil, fmt.Errorf("failed to send HTTP request: %w", err))
			return
		}
		defer func() {
			if err := httpResp.Body.Close(); err != nil {
				log.Error(ctx, "failed to close http response body", err)
			}
		}()

		if httpResp.StatusCode != http.StatusOK {
			yield(nil, fmt.Errorf("unexpected HTTP status: %s", httpResp.Status))
			return
		}

		// errors detected before the stream started are sent as a plain JSON-RPC response
		if httpResp.Header.Get("Content-Type") == jsonrpc.ContentJSON {
			var resp jsonrpc.ClientResponse
			if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
				yield(nil, fmt.Errorf("failed to decode response: %w", err))
				return
			}
			if resp.Error != nil {
				yield(nil, resp.Error.ToA2AError())
				return
			}
			yield(resp.Result, nil)
			return
		}

		for result, err := range parseSSEStream(httpResp.Body) {
			if !yield(result, err) || err != nil {
				return
			}
		}
	}
}

func (c *httpCaller) close() error {
	return nil
}

// parseSSEStream parses Server-Sent Events and yields JSON-RPC results.
func parseSSEStream(body io.Reader) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for data, err := range sse.ParseDataStream(body) {
			if err != nil {
				yield(nil, err)
				return
			}
			var resp jsonrpc.ClientResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				yield(nil, fmt.Errorf("failed to parse SSE data: %w", err))
				return
			}
			if resp.Error != nil {
				yield(nil, resp.Error.ToA2AError())
				return
			}
			if !yield(resp.Result, nil) {
				return
			}
		}
	}
}

func decodeResult[T any](result json.RawMessage, what string) (*T, error) {
	var v T
	if err := json.Unmarshal(result, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return &v, nil
}

// SendMessage implements [Transport].
func (t *rpcTransport) SendMessage(ctx context.Context, params ServiceParams, message *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodMessageSend, params, message)
	if err != nil {
		return nil, err
	}

	// message/send can return either a Task or a Message
	res, err := a2a.UnmarshalSendMessageResult(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", a2a.ErrInvalidAgentResponse, err)
	}
	return res, nil
}

// streamEvents converts a stream of results into a sequence of A2A events.
func (t *rpcTransport) streamEvents(ctx context.Context, method string, params ServiceParams, req any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		for result, err := range t.caller.stream(ctx, method, params, req) {
			if err != nil {
				yield(nil, err)
				return
			}

			event, err := a2a.UnmarshalEventJSON(result)
			if err != nil {
				yield(nil, fmt.Errorf("%w: %w", a2a.ErrInvalidAgentResponse, err))
				return
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}

// SendStreamingMessage implements [Transport].
func (t *rpcTransport) SendStreamingMessage(ctx context.Context, params ServiceParams, message *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return t.streamEvents(ctx, jsonrpc.MethodMessageStream, params, message)
}

// GetTask implements [Transport].
func (t *rpcTransport) GetTask(ctx context.Context, params ServiceParams, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodTasksGet, params, query)
	if err != nil {
		return nil, err
	}
	return decodeResult[a2a.Task](result, "task")
}

// CancelTask implements [Transport].
func (t *rpcTransport) CancelTask(ctx context.Context, params ServiceParams, id *a2a.TaskIDParams) (*a2a.Task, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodTasksCancel, params, id)
	if err != nil {
		return nil, err
	}
	return decodeResult[a2a.Task](result, "task")
}

// ResubscribeToTask implements [Transport].
func (t *rpcTransport) ResubscribeToTask(ctx context.Context, params ServiceParams, id *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return t.streamEvents(ctx, jsonrpc.MethodTasksResubscribe, params, id)
}

// GetTaskPushConfig implements [Transport].
func (t *rpcTransport) GetTaskPushConfig(ctx context.Context, params ServiceParams, req *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodPushConfigGet, params, req)
	if err != nil {
		return nil, err
	}
	return decodeResult[a2a.TaskPushConfig](result, "config")
}

// ListTaskPushConfig implements [Transport].
func (t *rpcTransport) ListTaskPushConfig(ctx context.Context, params ServiceParams, req *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodPushConfigList, params, req)
	if err != nil {
		return nil, err
	}
	configs, err := decodeResult[[]*a2a.TaskPushConfig](result, "configs")
	if err != nil {
		return nil, err
	}
	return *configs, nil
}

// SetTaskPushConfig implements [Transport].
func (t *rpcTransport) SetTaskPushConfig(ctx context.Context, params ServiceParams, req *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	result, err := t.caller.call(ctx, jsonrpc.MethodPushConfigSet, params, req)
	if err != nil {
		return nil, err
	}
	return decodeResult[a2a.TaskPushConfig](result, "config")
}

// DeleteTaskPushConfig implements [Transport].
func (t *rpcTransport) DeleteTaskPushConfig(ctx context.Context, params ServiceParams, req *a2a.DeleteTaskPushConfigParams) error {
	_, err := t.caller.call(ctx, jsonrpc.MethodPushConfigDelete, params, req)
	return err
}

// Destroy implements [Transport].
func (t *rpcTransport) Destroy() error {
	return t.caller.close()
}
