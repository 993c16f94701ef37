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

package a2a

// TaskPushConfig associates a push notification configuration with a specific task.
// It is the params and the result of tasks/pushNotificationConfig/set.
type TaskPushConfig struct {
	// Config is the push notification configuration for this task.
	Config PushConfig `json:"pushNotificationConfig"`

	// TaskID is the ID of the task.
	TaskID TaskID `json:"taskId"`
}

// GetTaskPushConfigParams are the params of tasks/pushNotificationConfig/get. An empty ConfigID
// selects the first configuration registered for the task.
type GetTaskPushConfigParams struct {
	// TaskID is the unique identifier of the parent task.
	TaskID TaskID `json:"id"`

	// ConfigID is the ID of the push notification configuration to retrieve.
	ConfigID string `json:"pushNotificationConfigId,omitempty"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListTaskPushConfigParams are the params of tasks/pushNotificationConfig/list.
type ListTaskPushConfigParams struct {
	// TaskID is the unique identifier of the task.
	TaskID TaskID `json:"id"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DeleteTaskPushConfigParams are the params of tasks/pushNotificationConfig/delete.
type DeleteTaskPushConfigParams struct {
	// TaskID is the unique identifier of the parent task.
	TaskID TaskID `json:"id"`

	// ConfigID is the ID of the push notification configuration to delete.
	ConfigID string `json:"pushNotificationConfigId"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PushConfig defines the configuration for setting up push notifications for task updates.
type PushConfig struct {
	// ID is an optional unique ID for the push notification configuration, set by the client
	// to support multiple notification callbacks. Generated by the server when empty.
	ID string `json:"id,omitempty"`

	// Auth is optional authentication details for the agent to use when calling the
	// notification URL.
	Auth *PushAuthInfo `json:"authentication,omitempty"`

	// Token is an optional unique token for this task or session to validate incoming push notifications.
	Token string `json:"token,omitempty"`

	// URL is the callback URL where the agent should send push notifications.
	URL string `json:"url"`
}

// PushAuthInfo defines authentication details for a push notification endpoint.
type PushAuthInfo struct {
	// Credentials is optional credentials required by the push notification endpoint.
	Credentials string `json:"credentials,omitempty"`

	// Schemes are the supported authentication schemes (e.g., 'Basic', 'Bearer').
	Schemes []string `json:"schemes"`
}
