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

// MessageSendConfig defines configuration options for a message/send or message/stream request.
type MessageSendConfig struct {
	// AcceptedOutputModes is a list of output MIME types the client is prepared to accept in the response.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`

	// Blocking indicates if the client will wait for the task to reach a final state.
	// Defaults to true when omitted.
	Blocking *bool `json:"blocking,omitempty"`

	// HistoryLength is the number of most recent messages from the task's history to retrieve in the response.
	HistoryLength *int `json:"historyLength,omitempty"`

	// PushConfig is configuration for the agent to send push notifications for updates after the initial response.
	PushConfig *PushConfig `json:"pushNotificationConfig,omitempty"`
}

// MessageSendParams are the params of message/send and message/stream. They can be used
// to create a new task or continue an existing one.
type MessageSendParams struct {
	// Config is an optional configuration for the send request.
	Config *MessageSendConfig `json:"configuration,omitempty"`

	// Message is the message object being sent to the agent.
	Message *Message `json:"message"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Meta implements MetadataCarrier.
func (p *MessageSendParams) Meta() map[string]any {
	return p.Metadata
}

// SetMeta implements MetadataCarrier.
func (p *MessageSendParams) SetMeta(k string, v any) {
	setMeta(&p.Metadata, k, v)
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	// ID is the ID of the task to get.
	ID TaskID `json:"id"`

	// HistoryLength is the number of most recent messages from the task's history to retrieve.
	// Omitted means the full history, zero or negative means an empty history.
	HistoryLength *int `json:"historyLength,omitempty"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams are the params of tasks/cancel and tasks/resubscribe.
type TaskIDParams struct {
	// ID is the ID of the task.
	ID TaskID `json:"id"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Meta implements MetadataCarrier.
func (p *TaskIDParams) Meta() map[string]any {
	return p.Metadata
}

// SetMeta implements MetadataCarrier.
func (p *TaskIDParams) SetMeta(k string, v any) {
	setMeta(&p.Metadata, k, v)
}

// TruncateHistory returns a shallow copy of the task with history limited to the most recent
// historyLength messages. A nil historyLength keeps the full history.
func TruncateHistory(task *Task, historyLength *int) *Task {
	if task == nil || historyLength == nil {
		return task
	}
	result := *task
	n := *historyLength
	switch {
	case n <= 0:
		result.History = []*Message{}
	case n < len(task.History):
		result.History = task.History[len(task.History)-n:]
	}
	return &result
}
