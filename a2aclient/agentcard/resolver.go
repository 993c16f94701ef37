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

// Package agentcard fetches the public [a2a.AgentCard] of an agent.
package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

const defaultAgentCardPath = "/.well-known/agent.json"

// ErrStatusNotOK is returned when the card endpoint responds with a non-200 status.
type ErrStatusNotOK struct {
	StatusCode int
	Status     string
}

func (e *ErrStatusNotOK) Error() string {
	return fmt.Sprintf("agent card request failed: %s", e.Status)
}

// Resolver fetches agent cards over HTTP. The zero value uses a client with a 30 second timeout.
type Resolver struct {
	Client *http.Client
}

// NewResolver is a [Resolver] constructor function.
func NewResolver(client *http.Client) *Resolver {
	return &Resolver{Client: client}
}

type resolveConfig struct {
	path    string
	headers http.Header
}

// ResolveOption customizes a single [Resolver.Resolve] call.
type ResolveOption func(*resolveConfig)

// WithPath fetches the card from a path other than /.well-known/agent.json.
func WithPath(path string) ResolveOption {
	return func(c *resolveConfig) {
		c.path = path
	}
}

// WithRequestHeader adds a header to the card request.
func WithRequestHeader(key, value string) ResolveOption {
	return func(c *resolveConfig) {
		c.headers.Add(key, value)
	}
}

// Resolve fetches the card of the agent hosted at baseURL.
func (r *Resolver) Resolve(ctx context.Context, baseURL string, opts ...ResolveOption) (*a2a.AgentCard, error) {
	cfg := &resolveConfig{path: defaultAgentCardPath, headers: http.Header{}}
	for _, opt := range opts {
		opt(cfg)
	}

	cardURL, err := url.JoinPath(baseURL, strings.TrimPrefix(cfg.path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid agent card url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent card request: %w", err)
	}
	for k, vals := range cfg.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent card request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error(ctx, "failed to close agent card response body", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrStatusNotOK{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}
