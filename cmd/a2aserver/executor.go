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

package main

import (
	"context"
	"strings"
	"time"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// echoExecutor replies with the text of the user message as an artifact. A message
// saying "input" moves the task to input-required, so that multi-turn flows can be tried.
type echoExecutor struct {
	delay time.Duration
}

var _ a2asrv.AgentExecutor = (*echoExecutor)(nil)

func (e *echoExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Writer) error {
	if reqCtx.StoredTask == nil {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
	}
	if err := q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return err
	}

	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-reqCtx.Canceled():
			log.Info(ctx, "echo canceled")
			return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	text := messageText(reqCtx.Message)
	if strings.EqualFold(strings.TrimSpace(text), "input") {
		prompt := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("What should I echo?"))
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateInputRequired, prompt))
	}

	if err := q.Write(ctx, a2a.NewArtifactEvent(reqCtx, a2a.NewTextPart(text))); err != nil {
		return err
	}
	reply := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("echoed"))
	return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, reply))
}

func messageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var texts []string
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}
