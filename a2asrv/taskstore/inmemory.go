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

package taskstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/utils"
)

// InMemory is an implementation of [Store] which stores tasks in memory.
// This means that store contents do not survive server restarts.
type InMemory struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty [InMemory] store.
func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[a2a.TaskID]*a2a.Task)}
}

// Save implements [Store] interface.
func (s *InMemory) Save(ctx context.Context, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	stored, err := utils.DeepCopy(task)
	if err != nil {
		return &StorageError{Op: "save", TaskID: task.ID, Err: err}
	}

	s.mu.Lock()
	s.tasks[task.ID] = stored
	s.mu.Unlock()
	return nil
}

// Get implements [Store] interface.
func (s *InMemory) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	s.mu.RLock()
	stored, ok := s.tasks[taskID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, taskID)
	}

	task, err := utils.DeepCopy(stored)
	if err != nil {
		return nil, &StorageError{Op: "get", TaskID: taskID, Err: err}
	}
	return task, nil
}
