// Copyright 2025 Poiesic Systems
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


package core

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidateTopicName validates a topic name.
func ValidateTopicName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", ErrEmptyTopicName)
	}
	return nil
}

// ValidateTopicUpdate validates the fields set on a partial update.
func ValidateTopicUpdate(update TopicUpdate) error {
	if update.Name != nil {
		return ValidateTopicName(*update.Name)
	}
	return nil
}

// ValidateContentType validates that a ContentType has a known value.
func ValidateContentType(t ContentType) error {
	if !slices.Contains(ContentTypes, t) {
		return NewValidationError("kind", fmt.Errorf("%w: %q", ErrInvalidContentType, t))
	}
	return nil
}

// ParseQueryMode validates a query mode. An empty mode yields DefaultQueryMode.
func ParseQueryMode(mode string) (QueryMode, error) {
	switch m := QueryMode(strings.ToLower(strings.TrimSpace(mode))); m {
	case "":
		return DefaultQueryMode, nil
	case QueryModeNaive, QueryModeLocal, QueryModeGlobal, QueryModeHybrid:
		return m, nil
	default:
		return "", NewValidationError("mode", fmt.Errorf("%w: %q", ErrInvalidQueryMode, mode))
	}
}

// ValidateQuestion validates a question text.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return NewValidationError("question", ErrEmptyQuestion)
	}
	return nil
}

// ValidatePayload checks that payload carries the fields kind needs.
//
// Validation rules:
//   - document and image need FilePath
//   - webpage and youtube need an absolute http(s) URL
//   - text needs non-blank Text
//   - CallbackURL, when set, must be an absolute http(s) URL
func ValidatePayload(kind TaskKind, payload Payload) error {
	if err := ValidateContentType(kind); err != nil {
		return err
	}

	switch kind {
	case ContentTypeDocument, ContentTypeImage:
		if strings.TrimSpace(payload.FilePath) == "" {
			return NewValidationError("file_path", fmt.Errorf("%w: %s requires a file path", ErrInvalidPayload, kind))
		}
	case ContentTypeWebpage, ContentTypeYouTube:
		if err := validateHTTPURL(payload.URL); err != nil {
			return NewValidationError("url", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		}
	case ContentTypeText:
		if strings.TrimSpace(payload.Text) == "" {
			return NewValidationError("text", fmt.Errorf("%w: text cannot be empty", ErrInvalidPayload))
		}
	}

	if payload.CallbackURL != "" {
		if err := validateHTTPURL(payload.CallbackURL); err != nil {
			return NewValidationError("callback_url", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
