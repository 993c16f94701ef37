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
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/utils"
)

// InMemoryStore is a [ConfigStore] keeping configs in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	configs map[a2a.TaskID]map[string]*a2a.PushConfig
}

var _ ConfigStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{configs: make(map[a2a.TaskID]map[string]*a2a.PushConfig)}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func validateConfig(config *a2a.PushConfig) error {
	if config == nil {
		return fmt.Errorf("%w: push config cannot be nil", a2a.ErrInvalidParams)
	}
	if config.URL == "" {
		return fmt.Errorf("%w: push config endpoint cannot be empty", a2a.ErrInvalidParams)
	}
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return fmt.Errorf("%w: invalid push config endpoint URL: %w", a2a.ErrInvalidParams, err)
	}
	return nil
}

// Save implements [ConfigStore].
func (s *InMemoryStore) Save(ctx context.Context, taskID a2a.TaskID, config *a2a.PushConfig) (*a2a.PushConfig, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	toSave, err := utils.DeepCopy(config)
	if err != nil {
		return nil, err
	}
	if toSave.ID == "" {
		toSave.ID = newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[taskID]; !ok {
		s.configs[taskID] = make(map[string]*a2a.PushConfig)
	}
	s.configs[taskID][toSave.ID] = toSave

	return utils.DeepCopy(toSave)
}

// Get implements [ConfigStore].
func (s *InMemoryStore) Get(ctx context.Context, taskID a2a.TaskID, configID string) (*a2a.PushConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[taskID][configID]
	if !ok {
		return nil, ErrPushConfigNotFound
	}
	return utils.DeepCopy(config)
}

// List implements [ConfigStore].
func (s *InMemoryStore) List(ctx context.Context, taskID a2a.TaskID) ([]*a2a.PushConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*a2a.PushConfig, 0, len(s.configs[taskID]))
	for _, config := range s.configs[taskID] {
		copied, err := utils.DeepCopy(config)
		if err != nil {
			return nil, err
		}
		result = append(result, copied)
	}
	return result, nil
}

// Delete implements [ConfigStore].
func (s *InMemoryStore) Delete(ctx context.Context, taskID a2a.TaskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, ok := s.configs[taskID]
	if !ok {
		return nil
	}
	delete(configs, configID)
	if len(configs) == 0 {
		delete(s.configs, taskID)
	}
	return nil
}

// DeleteAll implements [ConfigStore].
func (s *InMemoryStore) DeleteAll(ctx context.Context, taskID a2a.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, taskID)
	return nil
}
