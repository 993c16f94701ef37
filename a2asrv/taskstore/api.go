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

// Package taskstore defines the persistence contract for tasks and provides in-memory
// and SQL implementations of it.
package taskstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ErrStorage is matched by every [StorageError].
var ErrStorage = errors.New("task storage failure")

// StorageError reports an I/O failure of the underlying storage medium.
type StorageError struct {
	// Op is the store operation that failed.
	Op string
	// TaskID is the task the operation was performed on.
	TaskID a2a.TaskID
	// Err is the cause.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("taskstore %s %q: %v", e.Op, e.TaskID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) succeed for all storage errors.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Store is an interface the server stack uses for storing and retrieving tasks. The task
// history is part of the task, so a Save followed by a Get of the same id returns the task
// together with its history.
//
// Implementations must return independent copies: mutating a task after Save or after Get
// must not affect the stored state. Concurrent calls for different task ids must not
// interfere with each other.
type Store interface {
	// Save creates or replaces the stored task. I/O failures are reported as [*StorageError].
	Save(ctx context.Context, task *a2a.Task) error

	// Get retrieves a task by ID. If a Task doesn't exist the method returns [a2a.ErrTaskNotFound].
	Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error)
}

func validateTask(task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", a2a.ErrInvalidParams)
	}
	if task.ID == "" {
		return fmt.Errorf("%w: task ID is required", a2a.ErrInvalidParams)
	}
	if task.ContextID == "" {
		return fmt.Errorf("%w: task context ID is required", a2a.ErrInvalidParams)
	}
	return nil
}
