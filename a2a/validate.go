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
	"fmt"
)

// ValidateMessage checks the fields every inbound message must carry.
// Returned errors wrap ErrInvalidParams.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is required", ErrInvalidParams)
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: message ID is required", ErrInvalidParams)
	}
	if len(msg.Parts) == 0 {
		return fmt.Errorf("%w: message parts is required", ErrInvalidParams)
	}
	if msg.Role != MessageRoleUser && msg.Role != MessageRoleAgent {
		return fmt.Errorf("%w: message role %q is invalid", ErrInvalidParams, msg.Role)
	}
	for i, p := range msg.Parts {
		if err := validatePart(p); err != nil {
			return fmt.Errorf("%w: part %d: %w", ErrInvalidParams, i, err)
		}
	}
	return nil
}

func validatePart(p Part) error {
	switch v := p.(type) {
	case TextPart, DataPart:
		return nil
	case FilePart:
		switch f := v.File.(type) {
		case FileBytes:
			if f.Bytes == "" {
				return errors.New("file bytes are empty")
			}
		case FileURI:
			if f.URI == "" {
				return errors.New("file uri is empty")
			}
		default:
			return errors.New("file content is missing")
		}
		return nil
	default:
		return fmt.Errorf("unsupported part type %T", p)
	}
}
