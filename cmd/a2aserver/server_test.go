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

package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2aclient"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2aclient/agentcard"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/push"
)

func testConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:0",
		Store:           storeMemory,
		CancelPolicy:    a2asrv.CancelImmediate,
		SignPush:        true,
		ShutdownTimeout: time.Second,
	}
}

// startServer serves the HTTP surface of a server built from cfg. PublicURL is set to
// the test server address, so the published card points back at it.
func startServer(t *testing.T, cfg *Config) (*server, *httptest.Server) {
	t.Helper()
	var srv *server
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		srv.mux.ServeHTTP(rw, req)
	}))
	t.Cleanup(ts.Close)

	cfg.PublicURL = ts.URL
	require.NoError(t, cfg.Validate())
	var err error
	srv, err = newServer(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.closeStore() })
	return srv, ts
}

func newClient(t *testing.T, baseURL string, config a2aclient.Config, preferred a2a.TransportProtocol) *a2aclient.Client {
	t.Helper()
	card, err := agentcard.NewResolver(nil).Resolve(t.Context(), baseURL)
	require.NoError(t, err)
	config.PreferredTransports = []a2a.TransportProtocol{preferred}
	client, err := a2aclient.NewFromCard(t.Context(), card, a2aclient.WithConfig(config), a2aclient.WithWebSocketTransport(nil))
	require.NoError(t, err)
	return client
}

func TestServer_AgentCard(t *testing.T) {
	_, ts := startServer(t, testConfig())

	for _, path := range []string{a2asrv.WellKnownAgentCardPath, a2asrv.WellKnownAgentCardPathAlt} {
		t.Run(path, func(t *testing.T) {
			card, err := agentcard.NewResolver(nil).Resolve(t.Context(), ts.URL, agentcard.WithPath(path))
			require.NoError(t, err)

			assert.Equal(t, "Echo Agent", card.Name)
			assert.Equal(t, ts.URL, card.URL)
			assert.Equal(t, a2a.Version, card.ProtocolVersion)
			assert.True(t, card.Capabilities.Streaming)
			assert.True(t, card.Capabilities.PushNotifications)
			require.Len(t, card.AdditionalInterfaces, 2)
			assert.Equal(t, "ws"+strings.TrimPrefix(ts.URL, "http")+wsPath, card.AdditionalInterfaces[1].URL)
		})
	}
}

func TestServer_GRPCInterfacePublished(t *testing.T) {
	cfg := testConfig()
	cfg.GRPCAddr = "127.0.0.1:50051"
	srv, _ := startServer(t, cfg)

	require.NotNil(t, srv.grpc)
	require.Len(t, srv.card.AdditionalInterfaces, 3)
	assert.Equal(t, a2a.AgentInterface{Transport: a2a.TransportProtocolGRPC, URL: cfg.GRPCAddr}, srv.card.AdditionalInterfaces[2])
}

func TestServer_JWKS(t *testing.T) {
	_, ts := startServer(t, testConfig())

	resp, err := http.Get(ts.URL + push.WellKnownJWKSPath)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	assert.NotEmpty(t, jwks.Keys[0]["kid"])
}

func TestServer_JWKSDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SignPush = false
	_, ts := startServer(t, cfg)

	resp, err := http.Get(ts.URL + push.WellKnownJWKSPath)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// Unknown paths fall through to the JSON-RPC endpoint, which rejects GET requests.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"keys"`)
	assert.Contains(t, string(body), `"error"`)
}

func TestServer_Echo(t *testing.T) {
	_, ts := startServer(t, testConfig())

	for _, transport := range []a2a.TransportProtocol{a2a.TransportProtocolJSONRPC, a2a.TransportProtocolWebSocket} {
		t.Run(string(transport), func(t *testing.T) {
			client := newClient(t, ts.URL, a2aclient.Config{}, transport)
			t.Cleanup(func() { _ = client.Destroy() })

			msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart("hello"))
			result, err := client.SendMessage(t.Context(), &a2a.MessageSendParams{Message: msg})
			require.NoError(t, err)

			task, ok := result.(*a2a.Task)
			require.True(t, ok, "result = %T, want a task", result)
			assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
			require.Len(t, task.Artifacts, 1)
			assert.Equal(t, a2a.ContentParts{a2a.NewTextPart("hello")}, task.Artifacts[0].Parts)
		})
	}
}

func TestServer_EchoStream(t *testing.T) {
	_, ts := startServer(t, testConfig())
	client := newClient(t, ts.URL, a2aclient.Config{}, a2a.TransportProtocolJSONRPC)

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart("stream me"))
	var states []a2a.TaskState
	var artifacts int
	for event, err := range client.SendStreamingMessage(t.Context(), &a2a.MessageSendParams{Message: msg}) {
		require.NoError(t, err)
		switch v := event.(type) {
		case *a2a.Task:
			states = append(states, v.Status.State)
		case *a2a.TaskStatusUpdateEvent:
			states = append(states, v.Status.State)
		case *a2a.TaskArtifactUpdateEvent:
			artifacts++
		}
	}
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateCompleted}, states)
	assert.Equal(t, 1, artifacts)
}

func TestServer_InputRequired(t *testing.T) {
	_, ts := startServer(t, testConfig())
	client := newClient(t, ts.URL, a2aclient.Config{}, a2a.TransportProtocolJSONRPC)
	ctx := t.Context()

	first, err := client.SendMessage(ctx, &a2a.MessageSendParams{Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart("input"))})
	require.NoError(t, err)
	task := first.(*a2a.Task)
	require.Equal(t, a2a.TaskStateInputRequired, task.Status.State)
	require.NotNil(t, task.Status.Message)

	followUp := a2a.NewMessageForTask(a2a.MessageRoleUser, task, a2a.NewTextPart("more"))
	second, err := client.SendMessage(ctx, &a2a.MessageSendParams{Message: followUp})
	require.NoError(t, err)
	task = second.(*a2a.Task)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, a2a.ContentParts{a2a.NewTextPart("more")}, task.Artifacts[0].Parts)
}

func TestServer_CancelSlowEcho(t *testing.T) {
	cfg := testConfig()
	cfg.EchoDelay = time.Minute
	_, ts := startServer(t, cfg)
	client := newClient(t, ts.URL, a2aclient.Config{Polling: true}, a2a.TransportProtocolJSONRPC)
	ctx := t.Context()

	result, err := client.SendMessage(ctx, &a2a.MessageSendParams{Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart("slow"))})
	require.NoError(t, err)
	task := result.(*a2a.Task)
	assert.False(t, task.Status.State.Terminal())

	canceled, err := client.CancelTask(ctx, &a2a.TaskIDParams{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	_, err = client.CancelTask(ctx, &a2a.TaskIDParams{ID: task.ID})
	assert.ErrorIs(t, err, a2a.ErrTaskNotCancelable)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())
	srv, err := newServer(t.Context(), cfg)
	require.NoError(t, err)

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, httpLis, grpcLis) }()

	resp, err := http.Get("http://" + httpLis.Addr().String() + a2asrv.WellKnownAgentCardPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after the context was canceled")
	}
}
