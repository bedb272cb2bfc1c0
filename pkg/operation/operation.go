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

package operation

import (
	"context"
	"time"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/log"
	"github.com/amiller-gh/hoist/pkg/metrics"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/amiller-gh/hoist/pkg/status"
	"github.com/amiller-gh/hoist/pkg/transform"
	"github.com/jonboulle/clockwork"
	"gitlab.com/tozd/go/errors"
)

type Operator interface {
	// Deploy publishes the local tree and collects stale objects
	Deploy(ctx context.Context) (*Report, error)
	// Up deploys and then makes the bucket publicly readable
	Up(ctx context.Context) (*Report, error)
	// Down makes the bucket private again
	Down(ctx context.Context) error
}

type Options struct {
	// Provider is the remote object store, already initialized
	Provider provider.Provider
	// Root is the local directory to publish
	Root string
	// Subdir optionally narrows publishing to root/subdir
	Subdir string
	// Bucket is shown in the run header
	Bucket string
	// Delete enables the garbage collection sweep
	Delete bool
	// Concurrency is the number of upload lanes
	Concurrency int
	// Grace is how long an object stays pending before it may be deleted
	Grace time.Duration
	// OpTimeout bounds every network call
	OpTimeout time.Duration

	// optional collaborators
	Clock      clockwork.Clock
	Transforms *transform.Registry
	Recorder   metrics.Recorder
	Progress   status.ProgressFunc
}

func New(opts Options) (Operator, error) {
	if opts.Provider == nil {
		return nil, errors.Errorf("provider is required")
	}
	if opts.Root == "" {
		return nil, errors.Errorf("root is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultConcurrency
	}
	if opts.Grace <= 0 {
		opts.Grace = config.DefaultGracePeriod
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = config.DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Transforms == nil {
		opts.Transforms = transform.NewRegistry()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &operator{opts: opts}, nil
}

type operator struct {
	opts Options
}

func (o *operator) Up(ctx context.Context) (*Report, error) {
	report, err := o.Deploy(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.opts.Provider.MakePublic(ctx); err != nil {
		return report, errors.Errorf("making bucket public: %w", err)
	}
	log.FromContext(ctx).Successf("%s is public", report.URL)
	return report, nil
}

func (o *operator) Down(ctx context.Context) error {
	if err := o.opts.Provider.MakePrivate(ctx); err != nil {
		return errors.Errorf("making bucket private: %w", err)
	}
	log.FromContext(ctx).Successf("%s is private", o.opts.Provider.URL())
	return nil
}
