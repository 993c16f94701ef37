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

import (
	"errors"
	"testing"
)

func TestTaskState_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from, to TaskState
		want     bool
	}{
		{from: TaskStateSubmitted, to: TaskStateWorking, want: true},
		{from: TaskStateSubmitted, to: TaskStateRejected, want: true},
		{from: TaskStateWorking, to: TaskStateCompleted, want: true},
		{from: TaskStateWorking, to: TaskStateFailed, want: true},
		{from: TaskStateWorking, to: TaskStateInputRequired, want: true},
		{from: TaskStateInputRequired, to: TaskStateWorking, want: true},
		{from: TaskStateWorking, to: TaskStateCanceled, want: true},
		{from: TaskStateWorking, to: TaskStateWorking, want: true},
		{from: TaskStateWorking, to: TaskStateSubmitted, want: false},
		{from: TaskStateInputRequired, to: TaskStateRejected, want: false},
		{from: TaskStateSubmitted, to: TaskStateCompleted, want: true},
		{from: TaskStateSubmitted, to: TaskStateInputRequired, want: true},
		{from: TaskStateSubmitted, to: TaskStateAuthRequired, want: true},
		{from: TaskStateSubmitted, to: TaskStateCanceled, want: true},
		{from: TaskStateSubmitted, to: TaskStateFailed, want: true},
		{from: TaskStateInputRequired, to: TaskStateCompleted, want: true},
		{from: TaskStateInputRequired, to: TaskStateCanceled, want: true},
		{from: TaskStateInputRequired, to: TaskStateFailed, want: true},
		{from: TaskStateInputRequired, to: TaskStateAuthRequired, want: false},
		{from: TaskStateAuthRequired, to: TaskStateWorking, want: true},
		{from: TaskStateAuthRequired, to: TaskStateCompleted, want: false},
		{from: TaskStateWorking, to: TaskStateUnknown, want: false},
	}
	for _, tc := range testCases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%q.CanTransitionTo(%q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTaskState_TerminalStatesAreFinal(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected}
	all := []TaskState{
		TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected,
	}
	for _, from := range terminal {
		if !from.Terminal() {
			t.Errorf("%q.Terminal() = false, want true", from)
		}
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("%q.CanTransitionTo(%q) = true, want false", from, to)
			}
			if err := ValidateTransition(from, to); !errors.Is(err, ErrInvalidAgentResponse) {
				t.Errorf("ValidateTransition(%q, %q) = %v, want ErrInvalidAgentResponse", from, to, err)
			}
		}
	}
}

func TestValidateTransition_UnknownState(t *testing.T) {
	if err := ValidateTransition(TaskStateWorking, "paused"); !errors.Is(err, ErrInvalidAgentResponse) {
		t.Errorf("ValidateTransition(working, paused) = %v, want ErrInvalidAgentResponse", err)
	}
	if err := ValidateTransition(TaskStateWorking, TaskStateCompleted); err != nil {
		t.Errorf("ValidateTransition(working, completed) = %v, want nil", err)
	}
}

func TestValidateMessage(t *testing.T) {
	testCases := []struct {
		name    string
		msg     *Message
		wantErr bool
	}{
		{name: "valid", msg: &Message{ID: "m1", Role: MessageRoleUser, Parts: ContentParts{NewTextPart("hi")}}},
		{name: "nil", msg: nil, wantErr: true},
		{name: "missing id", msg: &Message{Role: MessageRoleUser, Parts: ContentParts{NewTextPart("hi")}}, wantErr: true},
		{name: "missing parts", msg: &Message{ID: "m1", Role: MessageRoleUser}, wantErr: true},
		{name: "missing role", msg: &Message{ID: "m1", Parts: ContentParts{NewTextPart("hi")}}, wantErr: true},
		{
			name:    "empty file",
			msg:     &Message{ID: "m1", Role: MessageRoleUser, Parts: ContentParts{FilePart{File: FileURI{}}}},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMessage(tc.msg)
			if tc.wantErr && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("ValidateMessage() = %v, want ErrInvalidParams", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateMessage() = %v, want nil", err)
			}
		})
	}
}
