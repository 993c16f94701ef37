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

// Package grpcutil provides gRPC utility functions for A2A.
package grpcutil

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// ErrorDomain is the domain of the [errdetails.ErrorInfo] attached to A2A errors.
const ErrorDomain = "a2a-protocol.org"

// errorMappings lists protocol errors before the generic ones, so that an error wrapping
// both gets the specific code and reason. Primary entries are used by FromGRPCError when
// the status carries no ErrorInfo.
var errorMappings = []struct {
	code    codes.Code
	err     error
	reason  string
	primary bool
}{
	{codes.NotFound, a2a.ErrTaskNotFound, "TASK_NOT_FOUND", true},
	{codes.FailedPrecondition, a2a.ErrTaskNotCancelable, "TASK_NOT_CANCELABLE", true},
	{codes.Unimplemented, a2a.ErrPushNotificationNotSupported, "PUSH_NOTIFICATION_NOT_SUPPORTED", false},
	{codes.Unimplemented, a2a.ErrUnsupportedOperation, "UNSUPPORTED_OPERATION", true},
	{codes.InvalidArgument, a2a.ErrUnsupportedContentType, "CONTENT_TYPE_NOT_SUPPORTED", false},
	{codes.Internal, a2a.ErrInvalidAgentResponse, "INVALID_AGENT_RESPONSE", false},
	{codes.Unimplemented, a2a.ErrVersionNotSupported, "VERSION_NOT_SUPPORTED", false},
	{codes.Unauthenticated, a2a.ErrUnauthenticated, "UNAUTHENTICATED", true},
	{codes.PermissionDenied, a2a.ErrUnauthorized, "UNAUTHORIZED", true},
	{codes.InvalidArgument, a2a.ErrParseError, "PARSE_ERROR", false},
	{codes.InvalidArgument, a2a.ErrInvalidRequest, "INVALID_REQUEST", false},
	{codes.Unimplemented, a2a.ErrMethodNotFound, "METHOD_NOT_FOUND", false},
	{codes.InvalidArgument, a2a.ErrInvalidParams, "INVALID_PARAMS", true},
	{codes.Internal, a2a.ErrInternalError, "INTERNAL_ERROR", true},
	{codes.Unavailable, a2a.ErrServerError, "SERVER_ERROR", true},
	{codes.Canceled, context.Canceled, "", true},
	{codes.DeadlineExceeded, context.DeadlineExceeded, "", true},
}

// ToGRPCError translates a2a errors into gRPC status errors. The status carries an
// [errdetails.ErrorInfo] naming the protocol error and the [a2a.Error] details as a struct.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	// If it's already a gRPC status error, return it.
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason := codes.Internal, ""
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.err) {
			code, reason = mapping.code, mapping.reason
			break
		}
	}

	st := status.New(code, err.Error())

	var a2aErr *a2a.Error
	hasDetails := errors.As(err, &a2aErr) && len(a2aErr.Details) > 0

	if reason != "" {
		info := &errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}
		if hasDetails {
			info.Metadata = make(map[string]string, len(a2aErr.Details))
			for k, v := range a2aErr.Details {
				info.Metadata[k] = fmt.Sprint(v)
			}
		}
		if withInfo, err := st.WithDetails(info); err == nil {
			st = withInfo
		}
	}

	if hasDetails {
		s, err := structpb.NewStruct(a2aErr.Details)
		if err != nil {
			return st.Err()
		}

		withDetails, err := st.WithDetails(s)
		if err != nil {
			return st.Err()
		}
		st = withDetails
	}

	return st.Err()
}

// FromGRPCError translates gRPC errors into a2a errors. The ErrorInfo reason takes
// precedence over the status code.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}

	baseErr := a2a.ErrInternalError
	for _, mapping := range errorMappings {
		if mapping.primary && s.Code() == mapping.code {
			baseErr = mapping.err
			break
		}
	}

	details := make(map[string]any)
	for _, d := range s.Details() {
		switch detail := d.(type) {
		case *errdetails.ErrorInfo:
			if detail.GetDomain() != ErrorDomain {
				continue
			}
			for _, mapping := range errorMappings {
				if mapping.reason != "" && mapping.reason == detail.GetReason() {
					baseErr = mapping.err
					break
				}
			}
		case *structpb.Struct:
			for k, v := range detail.AsMap() {
				details[k] = v
			}
		}
	}

	errOut := a2a.NewError(baseErr, s.Message())
	if len(details) > 0 {
		errOut = errOut.WithDetails(details)
	}
	return errOut
}
