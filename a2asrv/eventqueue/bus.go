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

package eventqueue

import (
	"context"
	"iter"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// Bus fans out events from a single producer to any number of subscribers. One bus is
// created per originating message, so that the first event of a task which does not have
// an id yet can be delivered.
//
// Publishing never blocks: every subscriber has an unbounded buffer. Events published before
// the first subscriber attaches are buffered and handed to that subscriber. Subscribers
// attaching later observe only the events published after they attached. All subscribers
// observe the same order.
type Bus struct {
	mu       sync.Mutex
	pending  []a2a.Event
	attached bool
	closed   bool
	subs     map[*Queue]struct{}

	drained     chan struct{}
	drainedOnce sync.Once
}

var _ Writer = (*Bus)(nil)

// NewBus creates an open bus without subscribers.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[*Queue]struct{}),
		drained: make(chan struct{}),
	}
}

// Write implements [Writer]. It returns [ErrQueueClosed] after [Bus.Close].
func (b *Bus) Write(ctx context.Context, event a2a.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrQueueClosed
	}
	if !b.attached {
		b.pending = append(b.pending, event)
		return nil
	}
	for q := range b.subs {
		q.push(event)
	}
	return nil
}

// Subscribe attaches a new subscriber. Subscribing to a closed bus returns a queue which
// yields the buffered events, if any, and then reports [ErrQueueClosed].
func (b *Bus) Subscribe() *Queue {
	q := &Queue{bus: b, notify: make(chan struct{}, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		b.attached = true
		q.events = b.pending
		b.pending = nil
	}
	if b.closed {
		q.closed = true
		return q
	}
	b.subs[q] = struct{}{}
	return q
}

// Close signals that no more events will be published. Subscribers can still drain the
// events buffered for them. Closing a closed bus is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for q := range b.subs {
		q.close()
	}
	idle := len(b.subs) == 0
	b.mu.Unlock()

	if idle {
		b.markDrained()
	}
	return nil
}

// Closed reports whether Close was called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Subscribers returns the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Drained returns a channel which is closed once the bus is closed and every subscriber
// detached.
func (b *Bus) Drained() <-chan struct{} {
	return b.drained
}

func (b *Bus) detach(q *Queue) {
	b.mu.Lock()
	delete(b.subs, q)
	idle := b.closed && len(b.subs) == 0
	b.mu.Unlock()

	if idle {
		b.markDrained()
	}
}

func (b *Bus) markDrained() {
	b.drainedOnce.Do(func() { close(b.drained) })
}

// Queue is an ordered view of the events published to a [Bus] for a single subscriber.
type Queue struct {
	bus *Bus

	mu       sync.Mutex
	events   []a2a.Event
	closed   bool
	detached bool
	notify   chan struct{}
}

var _ Reader = (*Queue)(nil)

func (q *Queue) push(event a2a.Event) {
	q.mu.Lock()
	if !q.detached {
		q.events = append(q.events, event)
	}
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Read implements [Reader].
func (q *Queue) Read(ctx context.Context) (a2a.Event, error) {
	for {
		q.mu.Lock()
		if q.detached {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(q.events) > 0 {
			event := q.events[0]
			q.events[0] = nil
			q.events = q.events[1:]
			q.mu.Unlock()
			return event, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Events returns the remaining events as a sequence. The sequence ends when the queue is
// closed and drained or when the consumer stops iterating. A context error is yielded before
// the sequence ends.
func (q *Queue) Events(ctx context.Context) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		for {
			event, err := q.Read(ctx)
			if err == ErrQueueClosed {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

// Close implements [Reader]. It detaches the queue from the bus and drops the events
// which were not read.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.detached {
		q.mu.Unlock()
		return nil
	}
	q.detached = true
	q.events = nil
	q.mu.Unlock()
	q.wake()

	q.bus.detach(q)
	return nil
}
