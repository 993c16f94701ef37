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

package a2a

import "fmt"

// TaskState defines a set of possible task states.
type TaskState string

const (
	// TaskStateUnspecified represents a missing TaskState value.
	TaskStateUnspecified TaskState = ""
	// TaskStateAuthRequired means the task requires authentication to proceed.
	TaskStateAuthRequired TaskState = "auth-required"
	// TaskStateCanceled means the task has been canceled by the user.
	TaskStateCanceled TaskState = "canceled"
	// TaskStateCompleted means the task has been successfully completed.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed means the task failed due to an error during execution.
	TaskStateFailed TaskState = "failed"
	// TaskStateInputRequired means the task is paused and waiting for input from the user.
	TaskStateInputRequired TaskState = "input-required"
	// TaskStateRejected means the task was rejected by the agent.
	TaskStateRejected TaskState = "rejected"
	// TaskStateSubmitted means the task has been submitted and is awaiting execution.
	TaskStateSubmitted TaskState = "submitted"
	// TaskStateUnknown means the task is in an unknown or indeterminate state.
	TaskStateUnknown TaskState = "unknown"
	// TaskStateWorking means the agent is actively working on the task.
	TaskStateWorking TaskState = "working"
)

// Terminal returns true for states in which a Task becomes immutable, i.e. no further
// changes to the Task are permitted.
func (ts TaskState) Terminal() bool {
	return ts == TaskStateCompleted ||
		ts == TaskStateCanceled ||
		ts == TaskStateFailed ||
		ts == TaskStateRejected
}

// Valid reports whether the value is one of the known states.
func (ts TaskState) Valid() bool {
	_, ok := transitions[ts]
	return ok
}

// transitions lists the states a task can move to from the key state. Staying in the same
// non-terminal state is always allowed and not listed.
//
// Besides the submitted -> working -> terminal path, a submitted task may settle in one step
// (agents which reply with a single status update), every interrupted state may be canceled or
// failed, and a resumed task may complete without reporting working first.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted: {
		TaskStateWorking, TaskStateRejected, TaskStateCanceled, TaskStateFailed,
		TaskStateInputRequired, TaskStateAuthRequired, TaskStateCompleted,
	},
	TaskStateWorking: {
		TaskStateInputRequired, TaskStateAuthRequired, TaskStateCompleted,
		TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateInputRequired: {TaskStateWorking, TaskStateCanceled, TaskStateFailed, TaskStateCompleted},
	TaskStateAuthRequired:  {TaskStateWorking, TaskStateCanceled, TaskStateFailed, TaskStateRejected},
	TaskStateUnknown: {
		TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	},
	TaskStateCompleted: nil,
	TaskStateCanceled:  nil,
	TaskStateFailed:    nil,
	TaskStateRejected:  nil,
}

// CanTransitionTo reports whether a task in this state may move to next.
// Terminal states accept no transitions, including to themselves.
func (ts TaskState) CanTransitionTo(next TaskState) bool {
	if ts.Terminal() {
		return false
	}
	if ts == next {
		return true
	}
	for _, s := range transitions[ts] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error wrapping ErrInvalidAgentResponse if a task cannot move from one
// state to the other.
func ValidateTransition(from, to TaskState) error {
	if !to.Valid() || to == TaskStateUnknown {
		return fmt.Errorf("%w: unknown task state %q", ErrInvalidAgentResponse, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: invalid task state transition %q -> %q", ErrInvalidAgentResponse, from, to)
	}
	return nil
}
