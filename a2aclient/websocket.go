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
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

const wsReadLimit = 10 * 1024 * 1024

var errTransportClosed = errors.New("transport closed")

// WithWebSocketTransport returns a Client factory option that enables the websocket binding
// for agent interfaces declared with [a2a.TransportProtocolWebSocket].
func WithWebSocketTransport(opts *websocket.DialOptions) FactoryOption {
	return WithTransport(
		a2a.TransportProtocolWebSocket,
		TransportFactoryFn(func(ctx context.Context, card *a2a.AgentCard, iface a2a.AgentInterface) (Transport, error) {
			return NewWebSocketTransport(iface.URL, opts), nil
		}),
	)
}

// NewWebSocketTransport creates a transport multiplexing JSON-RPC calls over a single websocket
// connection. The connection is opened by the first call and reopened after it breaks.
// Service params can only be sent with the handshake, so the params of the call which opens
// the connection apply to every call made on it.
func NewWebSocketTransport(url string, opts *websocket.DialOptions) Transport {
	return &rpcTransport{caller: &wsCaller{url: url, opts: opts, pending: make(map[string]*wsCall)}}
}

type wsCaller struct {
	url  string
	opts *websocket.DialOptions

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]*wsCall
	closed  bool
}

// wsCall receives the frames of one request.
type wsCall struct {
	conn   *websocket.Conn
	frames chan jsonrpc.ClientResponse
	// done is closed when the caller stops reading frames.
	done chan struct{}
	// broken is closed with err set when the connection fails.
	broken chan struct{}
	err    error
}

func (c *wsCaller) connect(ctx context.Context, params ServiceParams) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errTransportClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	opts := &websocket.DialOptions{}
	if c.opts != nil {
		copied := *c.opts
		opts = &copied
	}
	header := http.Header{}
	for k, v := range opts.HTTPHeader {
		header[k] = v
	}
	params.writeHeader(header)
	opts.HTTPHeader = header

	// the connection outlives the call which opened it
	conn, _, err := websocket.Dial(context.WithoutCancel(ctx), c.url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	c.conn = conn
	go c.readLoop(ctx, conn)
	return conn, nil
}

func (c *wsCaller) readLoop(ctx context.Context, conn *websocket.Conn) {
	ctx = context.WithoutCancel(ctx)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.fail(conn, err)
			return
		}

		var frame jsonrpc.ClientResponse
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn(ctx, "dropping malformed websocket frame", "error", err)
			continue
		}

		c.mu.Lock()
		call, ok := c.pending[frame.ID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		// a slow reader holds back the frames of the other calls
		select {
		case call.frames <- frame:
		case <-call.done:
		}
	}
}

func (c *wsCaller) fail(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	if c.closed {
		err = errTransportClosed
	}
	for id, call := range c.pending {
		if call.conn != conn {
			continue
		}
		call.err = fmt.Errorf("websocket connection failed: %w", err)
		close(call.broken)
		delete(c.pending, id)
	}
}

// send writes the request and registers for its response frames. The returned function
// must be called once the caller stops reading.
func (c *wsCaller) send(ctx context.Context, method string, params ServiceParams, payload any) (*wsCall, func(), error) {
	conn, err := c.connect(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	data, err := json.Marshal(jsonrpc.ClientRequest{JSONRPC: jsonrpc.Version, Method: method, Params: payload, ID: id})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	call := &wsCall{
		conn:   conn,
		frames: make(chan jsonrpc.ClientResponse, 1),
		done:   make(chan struct{}),
		broken: make(chan struct{}),
	}
	c.mu.Lock()
	c.pending[id] = call
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		if c.pending[id] == call {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(call.done)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	return call, release, nil
}

func (call *wsCall) next(ctx context.Context) (jsonrpc.ClientResponse, error) {
	select {
	case frame := <-call.frames:
		return frame, nil
	case <-call.broken:
		return jsonrpc.ClientResponse{}, call.err
	case <-ctx.Done():
		return jsonrpc.ClientResponse{}, ctx.Err()
	}
}

func (c *wsCaller) call(ctx context.Context, method string, params ServiceParams, req any) (json.RawMessage, error) {
	call, release, err := c.send(ctx, method, params, req)
	if err != nil {
		return nil, err
	}
	defer release()

	frame, err := call.next(ctx)
	if err != nil {
		return nil, err
	}
	if frame.Error != nil {
		return nil, frame.Error.ToA2AError()
	}
	return frame.Result, nil
}

func (c *wsCaller) stream(ctx context.Context, method string, params ServiceParams, req any) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		call, release, err := c.send(ctx, method, params, req)
		if err != nil {
			yield(nil, err)
			return
		}
		defer release()

		for {
			frame, err := call.next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if frame.Error != nil {
				yield(nil, frame.Error.ToA2AError())
				return
			}
			if frame.Done {
				return
			}
			if !yield(frame.Result, nil) {
				return
			}
		}
	}
}

func (c *wsCaller) close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}
