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

// Package taskupdate folds execution events into task state.
package taskupdate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/utils"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// Manager is used for processing [a2a.Event] related to an [a2a.Task]. It updates
// the Task accordingly and uses [taskstore.Store] to store the new state.
// Manager is the only writer of the task state for the duration of an execution and
// must not be used concurrently.
type Manager struct {
	store       taskstore.Store
	info        a2a.TaskInfo
	userMessage *a2a.Message

	task    *a2a.Task
	message *a2a.Message
	touched bool
}

// NewManager is a [Manager] constructor function. Info holds the ids assigned to the
// execution, userMessage is the message which started it and task is the stored task the
// message continues, if any.
func NewManager(store taskstore.Store, info a2a.TaskInfo, userMessage *a2a.Message, task *a2a.Task) *Manager {
	return &Manager{
		store:       store,
		info:        info,
		userMessage: userMessage,
		task:        task,
	}
}

// Result returns the direct reply message if one was received, otherwise the current task.
// It returns nil if no event was processed and no task was provided.
func (mgr *Manager) Result() a2a.SendMessageResult {
	if mgr.message != nil {
		return mgr.message
	}
	if mgr.task != nil {
		return mgr.task
	}
	return nil
}

// Task returns the current task or nil.
func (mgr *Manager) Task() *a2a.Task {
	return mgr.task
}

// Process validates the event and integrates it into the managed [a2a.Task]. The returned event
// is the one which should be delivered to subscribers. A nil event with a nil error means
// the event was a duplicate and was dropped.
func (mgr *Manager) Process(ctx context.Context, event a2a.Event) (a2a.Event, error) {
	if mgr.message != nil {
		return nil, fmt.Errorf("event %T after a direct reply: %w", event, a2a.ErrInvalidAgentResponse)
	}

	switch v := event.(type) {
	case *a2a.Message:
		if mgr.touched {
			return nil, fmt.Errorf("message not allowed after task was updated: %w", a2a.ErrInvalidAgentResponse)
		}
		mgr.message = v
		return v, nil

	case *a2a.Task:
		return mgr.adoptTask(ctx, v)

	case *a2a.TaskStatusUpdateEvent:
		task, err := mgr.resolveTask(ctx, v.TaskID, v.ContextID)
		if err != nil {
			return nil, err
		}
		return mgr.updateStatus(ctx, task, v)

	case *a2a.TaskArtifactUpdateEvent:
		if v.Artifact == nil || len(v.Artifact.Parts) == 0 {
			return nil, fmt.Errorf("artifact cannot be empty: %w", a2a.ErrInvalidAgentResponse)
		}
		task, err := mgr.resolveTask(ctx, v.TaskID, v.ContextID)
		if err != nil {
			return nil, err
		}
		return mgr.updateArtifact(ctx, task, v)

	default:
		return nil, fmt.Errorf("unexpected event type %T: %w", v, a2a.ErrInvalidAgentResponse)
	}
}

func (mgr *Manager) adoptTask(ctx context.Context, event *a2a.Task) (a2a.Event, error) {
	task, err := utils.DeepCopy(event)
	if err != nil {
		return nil, fmt.Errorf("failed to copy task: %w", err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("task id is missing: %w", a2a.ErrInvalidAgentResponse)
	}
	if task.ContextID == "" {
		task.ContextID = mgr.info.ContextID
	}

	if prev := mgr.task; prev != nil {
		if err := validateInfo(prev, task.TaskInfo()); err != nil {
			return nil, err
		}
		if prev.Status.State.Terminal() && prev.Status.State == task.Status.State {
			log.Debug(ctx, "dropping task snapshot for a terminal task", "task_id", task.ID)
			return nil, nil
		}
		if err := a2a.ValidateTransition(prev.Status.State, task.Status.State); err != nil {
			return nil, err
		}
		history := slices.Clone(prev.History)
		for _, msg := range task.History {
			if !slices.ContainsFunc(history, func(m *a2a.Message) bool { return m.ID == msg.ID }) {
				history = append(history, msg)
			}
		}
		task.History = history
	} else if !task.Status.State.Valid() {
		return nil, fmt.Errorf("invalid task state %q: %w", task.Status.State, a2a.ErrInvalidAgentResponse)
	}

	if mgr.userMessage != nil && !task.HasMessage(mgr.userMessage.ID) {
		if mgr.task != nil {
			task.History = append(task.History, mgr.userMessage)
		} else {
			task.History = append([]*a2a.Message{mgr.userMessage}, task.History...)
		}
	}
	if task.Status.Timestamp == nil {
		now := time.Now()
		task.Status.Timestamp = &now
	}

	if err := mgr.saveTask(ctx, task); err != nil {
		return nil, err
	}
	snapshot, err := utils.DeepCopy(task)
	if err != nil {
		return nil, fmt.Errorf("failed to copy task: %w", err)
	}
	return snapshot, nil
}

// resolveTask returns a working copy of the task an update refers to. A task missing from the
// store is created in submitted state when the update refers to the task of the execution.
// The copy becomes the resident task only once it is saved.
func (mgr *Manager) resolveTask(ctx context.Context, taskID a2a.TaskID, contextID string) (*a2a.Task, error) {
	info := a2a.TaskInfo{TaskID: taskID, ContextID: contextID}
	if mgr.task != nil {
		if err := validateInfo(mgr.task, info); err != nil {
			return nil, err
		}
		return copyTask(mgr.task)
	}
	if taskID == "" {
		return nil, fmt.Errorf("update without a task id: %w", a2a.ErrInvalidAgentResponse)
	}

	task, err := mgr.store.Get(ctx, taskID)
	if err == nil {
		if err := validateInfo(task, info); err != nil {
			return nil, err
		}
		mgr.task = task
		return copyTask(task)
	}
	if !errors.Is(err, a2a.ErrTaskNotFound) {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if taskID != mgr.info.TaskID {
		return nil, fmt.Errorf("update for unknown task %s: %w", taskID, a2a.ErrInvalidAgentResponse)
	}
	if contextID == "" {
		contextID = mgr.info.ContextID
	}
	return a2a.NewSubmittedTask(a2a.TaskInfo{TaskID: taskID, ContextID: contextID}, mgr.userMessage), nil
}

func copyTask(task *a2a.Task) (*a2a.Task, error) {
	cp, err := utils.DeepCopy(task)
	if err != nil {
		return nil, fmt.Errorf("failed to copy task: %w", err)
	}
	return cp, nil
}

func (mgr *Manager) updateStatus(ctx context.Context, task *a2a.Task, event *a2a.TaskStatusUpdateEvent) (a2a.Event, error) {
	from, to := task.Status.State, event.Status.State
	if from.Terminal() && from == to {
		log.Debug(ctx, "dropping repeated terminal status", "task_id", task.ID, "state", to)
		return nil, nil
	}
	if err := a2a.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	status, err := utils.DeepCopy(event.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to copy status: %w", err)
	}
	if status.Timestamp == nil {
		now := time.Now()
		status.Timestamp = &now
	}
	task.AppendHistory(status.Message)
	if event.Metadata != nil {
		if task.Metadata == nil {
			task.Metadata = make(map[string]any, len(event.Metadata))
		}
		maps.Copy(task.Metadata, event.Metadata)
	}
	task.Status = status

	if err := mgr.saveTask(ctx, task); err != nil {
		return nil, err
	}
	return event, nil
}

func (mgr *Manager) updateArtifact(ctx context.Context, task *a2a.Task, event *a2a.TaskArtifactUpdateEvent) (a2a.Event, error) {
	if task.Status.State.Terminal() {
		return nil, fmt.Errorf("artifact update for a task in %q state: %w", task.Status.State, a2a.ErrInvalidAgentResponse)
	}

	// The copy is required because the event will be passed to subscriber goroutines, while
	// the artifact might be modified in our goroutine by other TaskArtifactUpdateEvent-s.
	artifact, err := utils.DeepCopy(event.Artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to copy artifact: %w", err)
	}

	updateIdx := slices.IndexFunc(task.Artifacts, func(a *a2a.Artifact) bool {
		return a.ID == artifact.ID
	})

	switch {
	case updateIdx < 0:
		task.Artifacts = append(task.Artifacts, artifact)
	case !event.Append:
		task.Artifacts[updateIdx] = artifact
	default:
		mergeArtifact(task.Artifacts[updateIdx], artifact)
	}

	if err := mgr.saveTask(ctx, task); err != nil {
		return nil, err
	}
	return event, nil
}

// mergeArtifact appends the chunk parts and overwrites the scalar fields which the chunk sets.
func mergeArtifact(dst, chunk *a2a.Artifact) {
	dst.Parts = append(dst.Parts, chunk.Parts...)
	if chunk.Name != "" {
		dst.Name = chunk.Name
	}
	if chunk.Description != "" {
		dst.Description = chunk.Description
	}
	for _, ext := range chunk.Extensions {
		if !slices.Contains(dst.Extensions, ext) {
			dst.Extensions = append(dst.Extensions, ext)
		}
	}
	if chunk.Metadata != nil {
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]any, len(chunk.Metadata))
		}
		maps.Copy(dst.Metadata, chunk.Metadata)
	}
}

// saveTask persists the updated copy and makes it the resident task. The resident task is
// left untouched when the store rejects the update.
func (mgr *Manager) saveTask(ctx context.Context, task *a2a.Task) error {
	if err := mgr.store.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task state: %w", err)
	}
	mgr.task = task
	mgr.touched = true
	return nil
}

func validateInfo(task *a2a.Task, info a2a.TaskInfo) error {
	if task.ID != info.TaskID {
		return fmt.Errorf("task IDs don't match: %s != %s: %w", info.TaskID, task.ID, a2a.ErrInvalidAgentResponse)
	}
	if info.ContextID != "" && task.ContextID != info.ContextID {
		return fmt.Errorf("context IDs don't match: %s != %s: %w", info.ContextID, task.ContextID, a2a.ErrInvalidAgentResponse)
	}
	return nil
}
