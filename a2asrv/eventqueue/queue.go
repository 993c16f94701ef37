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

// Package eventqueue implements the in-process publish/subscribe channel which carries the
// events an agent executor produces to the components consuming them.
package eventqueue

import (
	"context"
	"errors"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ErrQueueClosed indicates that the event queue has been closed.
var ErrQueueClosed = errors.New("queue is closed")

// Reader defines the interface for reading events from a queue.
type Reader interface {
	// Read dequeues an event or blocks if the queue is empty. Once the queue is closed and
	// drained it returns [ErrQueueClosed].
	Read(ctx context.Context) (a2a.Event, error)

	// Close detaches the reader from the queue.
	Close() error
}

// Writer defines the interface for writing events to a queue.
// [a2asrv.AgentExecutor] translates agent responses to Messages, Tasks or Task update events
// and publishes them through a Writer.
type Writer interface {
	// Write publishes an event. It never blocks on slow readers.
	Write(ctx context.Context, event a2a.Event) error
}
