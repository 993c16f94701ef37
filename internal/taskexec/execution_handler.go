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

package taskexec

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

type eventProducerFn func(ctx context.Context) error

type eventConsumerFn func(ctx context.Context) (a2a.SendMessageResult, error)

// runProducerConsumer starts producer and consumer in an errgroup. The producer context is
// canceled once the consumer returns. A result returned by the consumer wins over a
// producer error.
func runProducerConsumer(
	ctx context.Context,
	producer eventProducerFn,
	consumer eventConsumerFn,
	panicHandler PanicHandlerFn,
) (a2a.SendMessageResult, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	producerCtx, cancelProducer := context.WithCancel(groupCtx)
	defer cancelProducer()

	var consumerDone atomic.Bool

	group.Go(func() (err error) {
		defer recoverPanic("event producer", panicHandler, &err)
		err = producer(producerCtx)
		if err != nil && consumerDone.Load() && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	var result a2a.SendMessageResult
	group.Go(func() (err error) {
		defer func() {
			consumerDone.Store(true)
			cancelProducer()
		}()
		defer recoverPanic("event consumer", panicHandler, &err)
		result, err = consumer(groupCtx)
		if err == nil && result == nil {
			err = fmt.Errorf("bug: consumer stopped, but result unset: %w", errNoResult)
		}
		return err
	})

	err := group.Wait()
	if result != nil {
		return result, nil
	}
	return nil, err
}

func recoverPanic(source string, handler PanicHandlerFn, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if handler != nil {
		*err = handler(r)
		return
	}
	*err = fmt.Errorf("%s panic: %v\n%s", source, r, debug.Stack())
}

// executionHandler moves events from the executor bus to the subscriber bus through a [Processor].
type executionHandler struct {
	agentEvents eventqueue.Reader
	subscribers eventqueue.Writer
	processor   Processor
	onTaskID    func(a2a.TaskID)
}

// processEvents runs until a final event was delivered or the executor bus was closed.
func (h *executionHandler) processEvents(ctx context.Context) (a2a.SendMessageResult, error) {
	defer func() {
		if err := h.agentEvents.Close(); err != nil {
			log.Warn(ctx, "failed to detach from agent events", "error", err)
		}
	}()

	for {
		event, err := h.agentEvents.Read(ctx)
		if errors.Is(err, eventqueue.ErrQueueClosed) {
			if result := h.processor.Result(); result != nil {
				return result, nil
			}
			return nil, errNoResult
		}
		if err != nil {
			return nil, err
		}

		delivered, err := h.handle(ctx, event)
		if err != nil {
			return nil, err
		}
		if delivered != nil && a2a.IsFinal(delivered) {
			return h.processor.Result(), nil
		}
	}
}

// handle processes a single event. A processing failure is reported to subscribers as a
// failure event of the task.
func (h *executionHandler) handle(ctx context.Context, event a2a.Event) (a2a.Event, error) {
	res, err := h.processor.Process(ctx, event)
	if err != nil {
		log.Error(ctx, "failed to process an agent event", err, "event_kind", fmt.Sprintf("%T", event))
		failure := h.processor.FailureEvent(ctx, err)
		if failure == nil {
			return nil, err
		}
		res, err = h.processor.Process(ctx, failure)
		if err != nil {
			return nil, fmt.Errorf("failed to report processing failure: %w", err)
		}
	}
	if res == nil || res.Event == nil {
		return nil, nil
	}
	if res.TaskID != "" && h.onTaskID != nil {
		h.onTaskID(res.TaskID)
	}
	if err := h.subscribers.Write(ctx, res.Event); err != nil {
		return nil, fmt.Errorf("failed to publish an event: %w", err)
	}
	return res.Event, nil
}
