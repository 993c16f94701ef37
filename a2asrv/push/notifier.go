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

	"golang.org/x/sync/errgroup"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

const defaultMaxConcurrentSends = 8

// Notifier sends a task snapshot to every config registered for the task.
type Notifier struct {
	store   ConfigStore
	sender  Sender
	maxSend int
}

// NewNotifier creates a notifier delivering at most maxConcurrent requests at a time.
// A non-positive value selects the default.
func NewNotifier(store ConfigStore, sender Sender, maxConcurrent int) *Notifier {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentSends
	}
	return &Notifier{store: store, sender: sender, maxSend: maxConcurrent}
}

// Notify delivers the task to all of its endpoints and returns the first delivery error.
func (n *Notifier) Notify(ctx context.Context, task *a2a.Task) error {
	configs, err := n.store.List(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to list push configs: %w", err)
	}
	if len(configs) == 0 {
		return nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(n.maxSend)
	for _, config := range configs {
		group.Go(func() error {
			return n.sender.SendPush(ctx, config, task)
		})
	}
	return group.Wait()
}
