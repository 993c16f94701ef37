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

// Package push stores per-task push notification configurations and delivers task
// snapshots to the webhooks they describe.
package push

import (
	"context"
	"errors"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ErrPushConfigNotFound is returned when a config with the requested id does not exist.
var ErrPushConfigNotFound = errors.New("push config not found")

// ConfigStore manages push notification configurations of tasks.
type ConfigStore interface {
	// Save creates or replaces a config. An ID is generated when the config has none.
	Save(ctx context.Context, taskID a2a.TaskID, config *a2a.PushConfig) (*a2a.PushConfig, error)

	// Get returns a config by id or ErrPushConfigNotFound.
	Get(ctx context.Context, taskID a2a.TaskID, configID string) (*a2a.PushConfig, error)

	// List returns all configs of a task. An unknown task has an empty list.
	List(ctx context.Context, taskID a2a.TaskID) ([]*a2a.PushConfig, error)

	// Delete removes a config. Deleting a missing config is not an error.
	Delete(ctx context.Context, taskID a2a.TaskID, configID string) error

	// DeleteAll removes all configs of a task.
	DeleteAll(ctx context.Context, taskID a2a.TaskID) error
}

// Sender delivers a task snapshot to a single push endpoint.
type Sender interface {
	SendPush(ctx context.Context, config *a2a.PushConfig, task *a2a.Task) error
}
