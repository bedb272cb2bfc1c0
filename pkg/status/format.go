// Copyright 2025 walteh LLC
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

package status

import (
	"fmt"
)

// Message formats and emojis
const (
	MsgProgress   = "%s Progress: %d/%d (%.0f%%)"
	EmojiProgress = "⏳"
	EmojiComplete = "✅"
)

type FileFormatter interface {
	// FormatObjectOperation formats a single upload decision
	FormatObjectOperation(path, remote string, outcome Outcome) string

	// FormatProgress formats a progress message
	FormatProgress(current, total int) string

	// FormatError formats an error message
	FormatError(err error) string
}

type DefaultFileFormatter struct{}

func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

func (f *DefaultFileFormatter) FormatObjectOperation(path, remote string, outcome Outcome) string {
	target := path
	if remote != "" && remote != path {
		target = fmt.Sprintf("%s → %s", path, remote)
	}
	switch outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("✨ Uploaded %s", target)
	case OutcomeError:
		return fmt.Sprintf("❌ Failed %s", target)
	default:
		return fmt.Sprintf("👍 Unchanged %s", target)
	}
}

func (f *DefaultFileFormatter) FormatProgress(current, total int) string {
	var percentage float64
	if total == 0 {
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf(MsgProgress, EmojiComplete, current, total, percentage)
	}
	return fmt.Sprintf(MsgProgress, EmojiProgress, current, total, percentage)
}

func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
