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

// Package a2a defines the A2A protocol data model: tasks, messages, artifacts, the
// events an agent emits while working on a task, and the protocol errors.
package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is a string constant which represents a version of the protocol.
type ProtocolVersion string

// Version is the protocol version this module implements.
const Version ProtocolVersion = "0.3.0"

// TaskInfoProvider provides information about the Task.
type TaskInfoProvider interface {
	// TaskInfo returns information about the task.
	TaskInfo() TaskInfo
}

// MetadataCarrier provides access to extensions metadata container.
type MetadataCarrier interface {
	// Meta returns the metadata container.
	Meta() map[string]any
	// SetMeta sets the metadata value for the provided key.
	SetMeta(k string, v any)
}

// TaskInfo represents information about the Task and the group of interactions it belongs to.
// Values might be empty which means the TaskInfoProvider is not associated with any tasks.
// An example would be the first user message.
type TaskInfo struct {
	// TaskID is an id of the task.
	TaskID TaskID
	// ContextID is an id of the interactions group the task belong to.
	ContextID string
}

// TaskInfo implements TaskInfoProvider so that the struct can be passed to core type constructor functions.
// For example: a2a.NewMessageForTask(role, a2a.TaskInfo{...}).
func (ti TaskInfo) TaskInfo() TaskInfo {
	return ti
}

// SendMessageResult represents a response for non-streaming message send.
type SendMessageResult interface {
	Event

	isSendMessageResult()
}

func (*Task) isSendMessageResult()    {}
func (*Message) isSendMessageResult() {}

// Event interface is used to represent types that can be published by an agent while it
// works on a request and sent over a streaming connection.
type Event interface {
	TaskInfoProvider
	MetadataCarrier

	isEvent()
}

func (*Message) isEvent()                 {}
func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// Event kinds used as the "kind" discriminator on the wire.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// UnmarshalEventJSON decodes an event using its "kind" discriminator.
func UnmarshalEventJSON(data []byte) (Event, error) {
	var typed struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch typed.Kind {
	case KindMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal Message event: %w", err)
		}
		return &msg, nil
	case KindTask:
		var task Task
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal Task event: %w", err)
		}
		return &task, nil
	case KindStatusUpdate:
		var event TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal TaskStatusUpdateEvent: %w", err)
		}
		return &event, nil
	case KindArtifactUpdate:
		var event TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal TaskArtifactUpdateEvent: %w", err)
		}
		return &event, nil
	default:
		return nil, fmt.Errorf("unknown event kind: %q", typed.Kind)
	}
}

// UnmarshalSendMessageResult decodes a message/send result which is either a Message or a Task.
func UnmarshalSendMessageResult(data []byte) (SendMessageResult, error) {
	event, err := UnmarshalEventJSON(data)
	if err != nil {
		return nil, err
	}
	result, ok := event.(SendMessageResult)
	if !ok {
		return nil, fmt.Errorf("unexpected send message result type: %T", event)
	}
	return result, nil
}

// MessageRole represents a set of possible values that identify the message sender.
type MessageRole string

// MessageRole constants.
const (
	// MessageRoleUnspecified is an unspecified message role.
	MessageRoleUnspecified MessageRole = ""
	// MessageRoleAgent is an agent message role.
	MessageRoleAgent MessageRole = "agent"
	// MessageRoleUser is a user message role.
	MessageRoleUser MessageRole = "user"
)

// NewMessageID generates a new random message identifier.
func NewMessageID() string {
	return newUUIDString()
}

var _ Event = (*Message)(nil)

// Message represents a single message in the conversation between a user and an agent.
type Message struct {
	// ID is a unique identifier for the message, typically a UUID, generated by the sender.
	ID string `json:"messageId"`

	// ContextID is the context identifier for this message, used to group related interactions.
	ContextID string `json:"contextId,omitempty"`

	// Extensions are the URIs of extensions that are relevant to this message.
	Extensions []string `json:"extensions,omitempty"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Parts is an array of content parts that form the message body.
	Parts ContentParts `json:"parts"`

	// ReferenceTasks is a list of other task IDs that this message references for additional context.
	ReferenceTasks []TaskID `json:"referenceTaskIds,omitempty"`

	// Role identifies the sender of the message.
	Role MessageRole `json:"role"`

	// TaskID is the identifier of the task this message is part of. Empty for the first
	// message of a new task.
	TaskID TaskID `json:"taskId,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	type wrapped Message
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: KindMessage, wrapped: wrapped(m)})
}

// NewMessage creates a new message with a random identifier.
func NewMessage(role MessageRole, parts ...Part) *Message {
	return &Message{
		ID:    NewMessageID(),
		Role:  role,
		Parts: parts,
	}
}

// NewMessageForTask creates a new message with a random identifier that references the provided Task.
func NewMessageForTask(role MessageRole, infoProvider TaskInfoProvider, parts ...Part) *Message {
	taskInfo := infoProvider.TaskInfo()
	return &Message{
		ID:        NewMessageID(),
		Role:      role,
		TaskID:    taskInfo.TaskID,
		ContextID: taskInfo.ContextID,
		Parts:     parts,
	}
}

// Meta implements MetadataCarrier.
func (m *Message) Meta() map[string]any {
	return m.Metadata
}

// SetMeta implements MetadataCarrier.
func (m *Message) SetMeta(k string, v any) {
	setMeta(&m.Metadata, k, v)
}

// TaskInfo implements TaskInfoProvider.
func (m *Message) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: m.TaskID, ContextID: m.ContextID}
}

// TaskID is a unique identifier for the task.
type TaskID string

// NewTaskID generates a new random task identifier.
func NewTaskID() TaskID {
	return TaskID(newUUIDString())
}

// NewContextID generates a new random context identifier.
func NewContextID() string {
	return newUUIDString()
}

var _ Event = (*Task)(nil)

// Task represents a single, stateful operation or conversation between a client and an agent.
type Task struct {
	// ID is a unique identifier for the task. It never changes after creation.
	ID TaskID `json:"id"`

	// Artifacts is a collection of artifacts generated by the agent, in the order they were first produced.
	Artifacts []*Artifact `json:"artifacts,omitempty"`

	// ContextID groups related tasks and messages. Required to be non empty.
	ContextID string `json:"contextId"`

	// History is the append-only list of messages exchanged during the task.
	History []*Message `json:"history,omitempty"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Status is the current status of the task.
	Status TaskStatus `json:"status"`
}

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	type wrapped Task
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: KindTask, wrapped: wrapped(t)})
}

// NewSubmittedTask is a utility for creating a Task in submitted state from the initial Message.
// New values are generated for task and context id when they are missing.
func NewSubmittedTask(infoProvider TaskInfoProvider, initialMessage *Message) *Task {
	taskInfo := infoProvider.TaskInfo()
	taskID := taskInfo.TaskID
	if taskID == "" {
		taskID = NewTaskID()
	}
	contextID := taskInfo.ContextID
	if contextID == "" {
		contextID = NewContextID()
	}
	now := time.Now()
	task := &Task{
		ID:        taskID,
		ContextID: contextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: &now},
	}
	if initialMessage != nil {
		task.History = []*Message{initialMessage}
	}
	return task
}

// Meta implements MetadataCarrier.
func (t *Task) Meta() map[string]any {
	return t.Metadata
}

// SetMeta implements MetadataCarrier.
func (t *Task) SetMeta(k string, v any) {
	setMeta(&t.Metadata, k, v)
}

// TaskInfo implements TaskInfoProvider.
func (t *Task) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: t.ID, ContextID: t.ContextID}
}

// HasMessage reports whether a message with the provided id is already in the task history.
func (t *Task) HasMessage(id string) bool {
	for _, m := range t.History {
		if m.ID == id {
			return true
		}
	}
	return false
}

// AppendHistory appends the message to the history unless a message with the same id is
// already present. Reports whether the message was added.
func (t *Task) AppendHistory(msg *Message) bool {
	if msg == nil || t.HasMessage(msg.ID) {
		return false
	}
	t.History = append(t.History, msg)
	return true
}

// TaskStatus represents the status of a task at a specific point in time.
type TaskStatus struct {
	// Message is an optional agent message providing more details about the current status.
	Message *Message `json:"message,omitempty"`

	// State is the current state of the task's lifecycle.
	State TaskState `json:"state"`

	// Timestamp indicates when this status was recorded.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ArtifactID is a unique identifier for the artifact within the scope of the task.
type ArtifactID string

// NewArtifactID generates a new random artifact identifier.
func NewArtifactID() ArtifactID {
	return ArtifactID(newUUIDString())
}

// Artifact represents a file, data structure, or other resource generated by an agent during a task.
type Artifact struct {
	// ID is a unique identifier for the artifact within the scope of the task.
	ID ArtifactID `json:"artifactId"`

	// Description is an optional, human-readable description of the artifact.
	Description string `json:"description,omitempty"`

	// Extensions are the URIs of extensions that are relevant to this artifact.
	Extensions []string `json:"extensions,omitempty"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Name is an optional, human-readable name for the artifact.
	Name string `json:"name,omitempty"`

	// Parts is an array of content parts that make up the artifact.
	Parts ContentParts `json:"parts"`
}

// Meta implements MetadataCarrier.
func (a *Artifact) Meta() map[string]any {
	return a.Metadata
}

// SetMeta implements MetadataCarrier.
func (a *Artifact) SetMeta(k string, v any) {
	setMeta(&a.Metadata, k, v)
}

var _ Event = (*TaskArtifactUpdateEvent)(nil)

// TaskArtifactUpdateEvent notifies the client that an artifact has been generated or updated.
type TaskArtifactUpdateEvent struct {
	// Append indicates that the parts of this artifact should be appended to a previously sent
	// artifact with the same ID instead of replacing it.
	Append bool `json:"append,omitempty"`

	// Artifact is the artifact that was generated or updated.
	Artifact *Artifact `json:"artifact"`

	// ContextID is the context ID associated with the task.
	ContextID string `json:"contextId"`

	// LastChunk indicates if this is the final chunk of the artifact.
	LastChunk bool `json:"lastChunk,omitempty"`

	// TaskID is the ID of the task this artifact belongs to.
	TaskID TaskID `json:"taskId"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type wrapped TaskArtifactUpdateEvent
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: KindArtifactUpdate, wrapped: wrapped(e)})
}

// Meta implements MetadataCarrier.
func (e *TaskArtifactUpdateEvent) Meta() map[string]any {
	return e.Metadata
}

// SetMeta implements MetadataCarrier.
func (e *TaskArtifactUpdateEvent) SetMeta(k string, v any) {
	setMeta(&e.Metadata, k, v)
}

// TaskInfo implements TaskInfoProvider.
func (e *TaskArtifactUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

// NewArtifactEvent creates a TaskArtifactUpdateEvent for an Artifact with a random ID.
func NewArtifactEvent(infoProvider TaskInfoProvider, parts ...Part) *TaskArtifactUpdateEvent {
	taskInfo := infoProvider.TaskInfo()
	return &TaskArtifactUpdateEvent{
		ContextID: taskInfo.ContextID,
		TaskID:    taskInfo.TaskID,
		Artifact: &Artifact{
			ID:    NewArtifactID(),
			Parts: parts,
		},
	}
}

// NewArtifactUpdateEvent creates a TaskArtifactUpdateEvent which appends parts to the artifact with the provided ID.
func NewArtifactUpdateEvent(infoProvider TaskInfoProvider, id ArtifactID, parts ...Part) *TaskArtifactUpdateEvent {
	taskInfo := infoProvider.TaskInfo()
	return &TaskArtifactUpdateEvent{
		ContextID: taskInfo.ContextID,
		TaskID:    taskInfo.TaskID,
		Append:    true,
		Artifact: &Artifact{
			ID:    id,
			Parts: parts,
		},
	}
}

var _ Event = (*TaskStatusUpdateEvent)(nil)

// TaskStatusUpdateEvent notifies the client of a change in a task's status.
type TaskStatusUpdateEvent struct {
	// ContextID is the context ID associated with the task.
	ContextID string `json:"contextId"`

	// Final is set on the last event the agent publishes for the current request.
	Final bool `json:"final"`

	// Status is the new status of the task.
	Status TaskStatus `json:"status"`

	// TaskID is the ID of the task that was updated.
	TaskID TaskID `json:"taskId"`

	// Metadata is an optional metadata for extensions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type wrapped TaskStatusUpdateEvent
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: KindStatusUpdate, wrapped: wrapped(e)})
}

// NewStatusUpdateEvent creates a TaskStatusUpdateEvent that references the provided Task.
// The event is marked final when the state is terminal or requires client input.
func NewStatusUpdateEvent(infoProvider TaskInfoProvider, state TaskState, msg *Message) *TaskStatusUpdateEvent {
	now := time.Now()
	taskInfo := infoProvider.TaskInfo()
	return &TaskStatusUpdateEvent{
		ContextID: taskInfo.ContextID,
		TaskID:    taskInfo.TaskID,
		Final:     state.Terminal() || state == TaskStateInputRequired || state == TaskStateAuthRequired,
		Status: TaskStatus{
			State:     state,
			Message:   msg,
			Timestamp: &now,
		},
	}
}

// Meta implements MetadataCarrier.
func (e *TaskStatusUpdateEvent) Meta() map[string]any {
	return e.Metadata
}

// SetMeta implements MetadataCarrier.
func (e *TaskStatusUpdateEvent) SetMeta(k string, v any) {
	setMeta(&e.Metadata, k, v)
}

// TaskInfo implements TaskInfoProvider.
func (e *TaskStatusUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

// IsFinal reports whether the event ends the stream of events produced for a request:
// a direct message reply, a status update marked final, or a task in a terminal state.
func IsFinal(event Event) bool {
	switch v := event.(type) {
	case *Message:
		return true
	case *TaskStatusUpdateEvent:
		return v.Final || v.Status.State.Terminal()
	case *Task:
		return v.Status.State.Terminal()
	default:
		return false
	}
}

func setMeta(m *map[string]any, k string, v any) {
	if *m == nil {
		*m = make(map[string]any)
	}
	(*m)[k] = v
}

// Time-based UUID generally improves index update performance if ID field is indexed in a persistent store.
func newUUIDString() string {
	return uuid.Must(uuid.NewV7()).String()
}
