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
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/tozd/go/errors"
)

// 🧪 TestDefaultFileFormatter tests the default object line formatter
func TestDefaultFileFormatter(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		remote  string
		outcome Outcome
		want    string
	}{
		{
			name:    "uploaded_renamed",
			path:    "style.css",
			remote:  "St1",
			outcome: OutcomeSuccess,
			want:    "✨ Uploaded style.css → St1",
		},
		{
			name:    "uploaded_literal",
			path:    "index.html",
			remote:  "index.html",
			outcome: OutcomeSuccess,
			want:    "✨ Uploaded index.html",
		},
		{
			name:    "present",
			path:    "robots.txt",
			remote:  "robots.txt",
			outcome: OutcomeNoop,
			want:    "👍 Unchanged robots.txt",
		},
		{
			name:    "failed",
			path:    "app.js",
			remote:  "Ax7",
			outcome: OutcomeError,
			want:    "❌ Failed app.js → Ax7",
		},
	}

	formatter := NewDefaultFileFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatter.FormatObjectOperation(tt.path, tt.remote, tt.outcome))
		})
	}
}

// 🧪 TestProgressFormatting tests progress message formatting
func TestProgressFormatting(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		expected string
	}{
		{"zero_progress", 0, 10, fmt.Sprintf(MsgProgress, EmojiProgress, 0, 10, 0.0)},
		{"half_progress", 5, 10, fmt.Sprintf(MsgProgress, EmojiProgress, 5, 10, 50.0)},
		{"complete", 10, 10, fmt.Sprintf(MsgProgress, EmojiComplete, 10, 10, 100.0)},
		{"empty_run", 0, 0, "✅ Progress: 0/0 (0%)"},
	}

	formatter := NewDefaultFileFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatter.FormatProgress(tt.current, tt.total))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	formatter := NewDefaultFileFormatter()
	assert.Equal(t, "", formatter.FormatError(nil))
	assert.Equal(t, "❌ Error: upload refused", formatter.FormatError(errors.New("upload refused")))
}
