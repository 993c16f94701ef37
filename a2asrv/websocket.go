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
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

type websocketHandler struct {
	rpc *jsonrpcHandler
	cfg TransportConfig
}

// NewWebSocketHandler creates an [http.Handler] serving the JSON-RPC binding over a websocket.
// Every text message is a JSON-RPC request and calls on one connection run concurrently.
// Responses of streaming methods are sent as a sequence of frames with the request id, the
// last of which has "done" set.
func NewWebSocketHandler(handler RequestHandler, options ...TransportOption) http.Handler {
	cfg := newTransportConfig(options)
	return &websocketHandler{
		rpc: &jsonrpcHandler{handler: handler, panicHandler: cfg.PanicHandler},
		cfg: cfg,
	}
}

func (h *websocketHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := attachLogger(req)
	params := serviceParamsFromHeader(req.Header)

	if err := CheckProtocolVersion(params.ProtocolVersion()); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(rw, req, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		log.Warn(ctx, "websocket handshake failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(h.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if h.cfg.KeepAliveInterval > 0 {
		go keepAlive(ctx, conn, h.cfg.KeepAliveInterval)
	}

	var wg sync.WaitGroup
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				log.Warn(ctx, "websocket read failed", "error", err)
			}
			break
		}

		var payload jsonrpc.ServerRequest
		if err := json.Unmarshal(data, &payload); err != nil {
			h.writeFrame(ctx, conn, nil, nil, handleUnmarshalError(err), false)
			continue
		}
		if !jsonrpc.IsValidID(payload.ID) {
			h.writeFrame(ctx, conn, nil, nil, a2a.ErrInvalidRequest, false)
			continue
		}
		if payload.JSONRPC != jsonrpc.Version {
			h.writeFrame(ctx, conn, payload.ID, nil, a2a.ErrInvalidRequest, false)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, _ := NewCallContext(ctx, params)
			h.serve(callCtx, conn, &payload)
		}()
	}

	cancel()
	wg.Wait()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *websocketHandler) serve(ctx context.Context, conn wsWriter, req *jsonrpc.ServerRequest) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic while serving %s", a2a.ErrInternalError, req.Method)
			if h.cfg.PanicHandler != nil {
				err = h.cfg.PanicHandler(r)
			} else {
				log.Error(ctx, "websocket call panicked", fmt.Errorf("%v", r))
			}
			if err != nil {
				h.writeFrame(ctx, conn, req.ID, nil, err, isStreamingMethod(req.Method))
			}
		}
	}()

	if !isStreamingMethod(req.Method) {
		result, err := h.rpc.invoke(ctx, req)
		h.writeFrame(ctx, conn, req.ID, result, err, false)
		return
	}

	for event, err := range h.rpc.events(ctx, req) {
		if err != nil {
			h.writeFrame(ctx, conn, req.ID, nil, err, true)
			return
		}
		if !h.writeFrame(ctx, conn, req.ID, event, nil, false) {
			return
		}
	}
	h.writeFrame(ctx, conn, req.ID, nil, nil, true)
}

// writeFrame reports whether the frame was delivered.
func (h *websocketHandler) writeFrame(ctx context.Context, conn wsWriter, id any, result any, err error, done bool) bool {
	resp := jsonrpc.ServerResponse{JSONRPC: jsonrpc.Version, ID: id, Done: done}
	if err != nil {
		resp.Error = jsonrpc.ToJSONRPCError(err)
	} else {
		resp.Result = result
	}
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error(ctx, "failed to marshal websocket frame", err)
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn(ctx, "failed to write websocket frame", "error", err)
		}
		return false
	}
	return true
}

func keepAlive(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warn(ctx, "websocket ping failed", "error", err)
				return
			}
		}
	}
}
