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
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// 📊 Outcome is the result of one upload decision
type Outcome int

const (
	OutcomeNoop    Outcome = iota // already present remotely
	OutcomeSuccess                // uploaded
	OutcomeError                  // upload failed
)

// String returns the outcome as NOOP, SUCCESS or ERROR
func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "NOOP"
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Label is the word shown on the console for o.
func (o Outcome) Label() string {
	switch o {
	case OutcomeNoop:
		return "present"
	case OutcomeSuccess:
		return "uploaded"
	case OutcomeError:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 Record is one decided object
type Record struct {
	Path    string // local path, or the artifact path for derivatives
	Remote  string
	Derived bool
	Outcome Outcome
	Size    int
	Err     error
}

// 📈 Counts are the run totals
type Counts struct {
	Uploaded int
	Noop     int
	Errored  int
	Derived  int
}

// ProgressFunc receives (completed, total) after every decision.
type ProgressFunc func(completed, total int)

// ObserveFunc receives every record after it is counted.
type ObserveFunc func(ctx context.Context, rec Record)

// 🔧 Tracker counts outcomes and reports progress. Callbacks run under the
// tracker's lock, so they are never invoked concurrently.
type Tracker struct {
	formatter FileFormatter
	progress  ProgressFunc
	observers []ObserveFunc

	mu        sync.Mutex
	total     int
	completed int
	counts    Counts
}

// 🏭 NewTracker creates a tracker expecting total decisions
func NewTracker(total int, progress ProgressFunc, observers ...ObserveFunc) *Tracker {
	return &Tracker{
		formatter: NewDefaultFileFormatter(),
		progress:  progress,
		observers: observers,
		total:     total,
	}
}

// Grow raises the expected total, e.g. when a transform emits derivatives.
func (t *Tracker) Grow(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += n
}

// 📝 Track counts rec and reports progress
func (t *Tracker) Track(ctx context.Context, rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch rec.Outcome {
	case OutcomeSuccess:
		t.counts.Uploaded++
	case OutcomeNoop:
		t.counts.Noop++
	case OutcomeError:
		t.counts.Errored++
	}
	if rec.Derived {
		t.counts.Derived++
	}
	t.completed++

	logger := zerolog.Ctx(ctx)
	if rec.Err != nil {
		logger.Error().Err(rec.Err).Str("file", rec.Path).Str("remote", rec.Remote).Msg(t.formatter.FormatError(rec.Err))
	} else {
		logger.Debug().
			Str("file", rec.Path).
			Str("remote", rec.Remote).
			Stringer("outcome", rec.Outcome).
			Msg(t.formatter.FormatObjectOperation(rec.Path, rec.Remote, rec.Outcome))
	}

	for _, observe := range t.observers {
		observe(ctx, rec)
	}
	if t.progress != nil {
		t.progress(t.completed, t.total)
	}
	logger.Debug().
		Int("completed", t.completed).
		Int("total", t.total).
		Msg(t.formatter.FormatProgress(t.completed, t.total))
}

// Counts returns a snapshot of the totals.
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}

// Progress returns (completed, total).
func (t *Tracker) Progress() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed, t.total
}
