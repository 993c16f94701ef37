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

package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

const (
	tokenHeader    = "X-A2A-Notification-Token"
	defaultTimeout = 30 * time.Second
)

// HTTPSenderConfig configures an [HTTPPushSender].
type HTTPSenderConfig struct {
	// Timeout of a single push request. Defaults to 30 seconds.
	Timeout time.Duration
	// FailOnError makes SendPush return delivery errors. By default they are only logged.
	FailOnError bool
	// Signer, when set, adds a signed JWT to every request.
	Signer *KeyManager
	// Client overrides the HTTP client. Timeout is ignored when it is set.
	Client *http.Client
}

// HTTPPushSender POSTs task snapshots as JSON.
type HTTPPushSender struct {
	client      *http.Client
	failOnError bool
	signer      *KeyManager
}

var _ Sender = (*HTTPPushSender)(nil)

// NewHTTPPushSender creates a sender. A nil config selects the defaults.
func NewHTTPPushSender(config *HTTPSenderConfig) *HTTPPushSender {
	if config == nil {
		config = &HTTPSenderConfig{}
	}
	client := config.Client
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPPushSender{client: client, failOnError: config.FailOnError, signer: config.Signer}
}

// SendPush implements [Sender].
func (s *HTTPPushSender) SendPush(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error {
	err := s.send(ctx, config, task)
	if err == nil {
		return nil
	}
	if s.failOnError {
		return err
	}
	log.Warn(ctx, "push notification delivery failed", "error", err)
	return nil
}

func (s *HTTPPushSender) send(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize event to JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set(tokenHeader, config.Token)
	}
	if config.Auth != nil && config.Auth.Credentials != "" && len(config.Auth.Schemes) > 0 {
		req.Header.Set("Authorization", config.Auth.Schemes[0]+" "+config.Auth.Credentials)
	} else if s.signer != nil {
		token, err := s.signer.Sign(body)
		if err != nil {
			return fmt.Errorf("failed to sign push notification: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn(ctx, "failed to close push response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification endpoint returned non-success status: %s", resp.Status)
	}
	return nil
}
