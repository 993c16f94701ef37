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
	"testing"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
)

// TestTaskStore is a mock of [taskstore.Store] backed by the in-memory implementation.
type TestTaskStore struct {
	*taskstore.InMemory

	SaveFunc func(ctx context.Context, task *a2a.Task) error
	GetFunc  func(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error)
}

var _ taskstore.Store = (*TestTaskStore)(nil)

// Save implements [taskstore.Store] interface.
func (m *TestTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, task)
	}
	return m.InMemory.Save(ctx, task)
}

// Get implements [taskstore.Store] interface.
func (m *TestTaskStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, taskID)
	}
	return m.InMemory.Get(ctx, taskID)
}

// SetSaveError overrides Save execution with given error
func (m *TestTaskStore) SetSaveError(err error) *TestTaskStore {
	m.SaveFunc = func(ctx context.Context, task *a2a.Task) error {
		return &taskstore.StorageError{Op: "save", TaskID: task.ID, Err: err}
	}
	return m
}

// SetGetOverride overrides Get execution
func (m *TestTaskStore) SetGetOverride(task *a2a.Task, err error) *TestTaskStore {
	m.GetFunc = func(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
		return task, err
	}
	return m
}

// WithTasks seeds TaskStore with given tasks
func (m *TestTaskStore) WithTasks(t *testing.T, tasks ...*a2a.Task) *TestTaskStore {
	t.Helper()
	ctx := t.Context()

	for _, task := range tasks {
		if err := m.InMemory.Save(ctx, task); err != nil {
			t.Errorf("failed to save task: %v", err)
		}
	}
	return m
}

// NewTestTaskStore creates a store which defaults to the in-memory implementation.
func NewTestTaskStore() *TestTaskStore {
	return &TestTaskStore{InMemory: taskstore.NewInMemory()}
}
