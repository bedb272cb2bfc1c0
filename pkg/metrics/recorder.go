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

// Package metrics records run counters and timings. The CLI can export them
// as a node-exporter textfile after every deploy.
package metrics

import (
	"context"
	"time"

	"github.com/amiller-gh/hoist/pkg/status"
)

// Recorder defines the observability hooks of a deploy. Implementations
// must be safe for concurrent use.
type Recorder interface {
	IncUpload(outcome status.Outcome, derived bool)
	ObserveUploadDuration(d time.Duration)
	IncDelete(success bool)
	SetPending(n int)
	ObserveDeployDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncUpload(status.Outcome, bool)      {}
func (NoopRecorder) ObserveUploadDuration(time.Duration) {}
func (NoopRecorder) IncDelete(bool)                      {}
func (NoopRecorder) SetPending(int)                      {}
func (NoopRecorder) ObserveDeployDuration(time.Duration) {}

// Observer feeds tracker records into r.
func Observer(r Recorder) status.ObserveFunc {
	return func(ctx context.Context, rec status.Record) {
		r.IncUpload(rec.Outcome, rec.Derived)
	}
}
