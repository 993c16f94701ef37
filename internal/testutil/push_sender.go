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
package testutil

import (
	"context"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/push"
)

// TestPushSender is a mock of [push.Sender] which records every delivery.
type TestPushSender struct {
	mu            sync.Mutex
	pushedTasks   []*a2a.Task
	pushedConfigs []*a2a.PushConfig

	SendPushFunc func(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error
}

var _ push.Sender = (*TestPushSender)(nil)

// SendPush records the call and invokes SendPushFunc if it's set.
func (m *TestPushSender) SendPush(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error {
	m.mu.Lock()
	m.pushedConfigs = append(m.pushedConfigs, config)
	m.pushedTasks = append(m.pushedTasks, task)
	m.mu.Unlock()

	if m.SendPushFunc != nil {
		return m.SendPushFunc(ctx, config, task)
	}
	return nil
}

// PushedTasks returns the tasks sent so far.
func (m *TestPushSender) PushedTasks() []*a2a.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*a2a.Task(nil), m.pushedTasks...)
}

// PushedConfigs returns the configs used so far.
func (m *TestPushSender) PushedConfigs() []*a2a.PushConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*a2a.PushConfig(nil), m.pushedConfigs...)
}

// SetSendPushError overrides SendPush execution with given error
func (m *TestPushSender) SetSendPushError(err error) *TestPushSender {
	m.SendPushFunc = func(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error {
		return err
	}
	return m
}

// NewTestPushSender creates a new TestPushSender.
func NewTestPushSender() *TestPushSender {
	return &TestPushSender{}
}
