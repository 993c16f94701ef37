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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Part is a sealed discriminated union representing a part of a message or artifact.
// Types that are valid parts are [TextPart], [FilePart] and [DataPart].
type Part interface {
	// Meta returns the metadata associated with the part.
	Meta() map[string]any

	isPart()
}

func (TextPart) isPart() {}
func (FilePart) isPart() {}
func (DataPart) isPart() {}

// ContentParts is an array of content parts that form the message body or an artifact.
type ContentParts []Part

// MarshalJSON implements json.Marshaler.
func (j ContentParts) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Part(j))
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *ContentParts) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}

	result := make(ContentParts, len(arr))
	for i, raw := range arr {
		var typed struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &typed); err != nil {
			return err
		}
		switch typed.Kind {
		case "text":
			var part TextPart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		case "data":
			var part DataPart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		case "file":
			var part FilePart
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			result[i] = part
		default:
			return fmt.Errorf("unknown part kind %q", typed.Kind)
		}
	}

	*j = result
	return nil
}

// TextPart is a Part carrying text.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart creates a Part that contains text.
func NewTextPart(text string) TextPart {
	return TextPart{Text: text}
}

// Meta implements Part.
func (p TextPart) Meta() map[string]any {
	return p.Metadata
}

// MarshalJSON implements json.Marshaler.
func (p TextPart) MarshalJSON() ([]byte, error) {
	type wrapped TextPart
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: "text", wrapped: wrapped(p)})
}

// DataPart is a Part carrying structured data.
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewDataPart creates a Part that contains structured data.
func NewDataPart(data map[string]any) DataPart {
	return DataPart{Data: data}
}

// Meta implements Part.
func (p DataPart) Meta() map[string]any {
	return p.Metadata
}

// MarshalJSON implements json.Marshaler.
func (p DataPart) MarshalJSON() ([]byte, error) {
	type wrapped DataPart
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: "data", wrapped: wrapped(p)})
}

// FilePart is a Part carrying a file either inline or by reference.
type FilePart struct {
	// File is either [FileBytes] or [FileURI].
	File     FilePartContent `json:"file"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// NewFileBytesPart creates a Part with inline file content.
func NewFileBytesPart(name, mimeType string, content []byte) FilePart {
	return FilePart{File: FileBytes{
		FileMeta: FileMeta{Name: name, MimeType: mimeType},
		Bytes:    base64.StdEncoding.EncodeToString(content),
	}}
}

// NewFileURIPart creates a Part which references a file by URI.
func NewFileURIPart(name, mimeType, uri string) FilePart {
	return FilePart{File: FileURI{
		FileMeta: FileMeta{Name: name, MimeType: mimeType},
		URI:      uri,
	}}
}

// Meta implements Part.
func (p FilePart) Meta() map[string]any {
	return p.Metadata
}

// MarshalJSON implements json.Marshaler.
func (p FilePart) MarshalJSON() ([]byte, error) {
	type wrapped FilePart
	type withKind struct {
		Kind string `json:"kind"`
		wrapped
	}
	return json.Marshal(withKind{Kind: "file", wrapped: wrapped(p)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *FilePart) UnmarshalJSON(b []byte) error {
	type fileUnion struct {
		FileMeta
		URI   string `json:"uri"`
		Bytes string `json:"bytes"`
	}
	var decoded struct {
		File     fileUnion      `json:"file"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}

	if decoded.File.Bytes == "" && decoded.File.URI == "" {
		return errors.New("invalid file part: either bytes or uri must be set")
	}
	if decoded.File.Bytes != "" && decoded.File.URI != "" {
		return errors.New("invalid file part: bytes and uri cannot be set at the same time")
	}

	res := FilePart{Metadata: decoded.Metadata}
	if decoded.File.Bytes != "" {
		res.File = FileBytes{FileMeta: decoded.File.FileMeta, Bytes: decoded.File.Bytes}
	} else {
		res.File = FileURI{FileMeta: decoded.File.FileMeta, URI: decoded.File.URI}
	}
	*p = res
	return nil
}

// FilePartContent is either [FileBytes] or [FileURI].
type FilePartContent interface {
	isFilePartContent()
}

func (FileBytes) isFilePartContent() {}
func (FileURI) isFilePartContent()   {}

// FileMeta describes a file.
type FileMeta struct {
	MimeType string `json:"mimeType,omitempty"`
	Name     string `json:"name,omitempty"`
}

// FileBytes is file content inlined as a base64 string.
type FileBytes struct {
	FileMeta
	Bytes string `json:"bytes"`
}

// Decode returns the decoded file content.
func (f FileBytes) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Bytes)
}

// FileURI is file content referenced by a URI.
type FileURI struct {
	FileMeta
	URI string `json:"uri"`
}
