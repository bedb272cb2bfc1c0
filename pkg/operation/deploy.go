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
	"path/filepath"

	"github.com/amiller-gh/hoist/pkg/log"
	"github.com/amiller-gh/hoist/pkg/naming"
	"github.com/amiller-gh/hoist/pkg/scan"
	"github.com/amiller-gh/hoist/pkg/state"
	"github.com/amiller-gh/hoist/pkg/text"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📊 Report is the outcome of one deploy
type Report struct {
	URL               string
	Uploaded          int
	Noop              int
	Errored           int
	Derived           int
	QueuedForDeletion int
	Deleted           int
}

// 🚀 Deploy loads remote state, publishes the local tree, sweeps stale
// objects and saves state. Per-object failures are counted in the report;
// only an unreadable root or a cancelled context return an error.
func (o *operator) Deploy(ctx context.Context) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	console := log.FromContext(ctx)
	opts := o.opts
	start := opts.Clock.Now()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Errorf("resolving root: %w", err)
	}

	console.StartDeploy(ctx, log.DeployOperation{Root: root, Subdir: opts.Subdir, Bucket: opts.Bucket})
	defer console.EndDeploy(ctx)

	// 1. remote state
	st := state.Load(ctx, opts.Provider, opts.Subdir)
	added := st.Reconcile(ctx, opts.Provider, opts.Clock.Now())
	logger.Debug().Int("new_pending", added).Msg("loaded remote state")

	// 2. local tree
	files, err := scan.Scan(ctx, scan.Options{Root: root, Subdir: opts.Subdir})
	if err != nil {
		return nil, errors.Errorf("scanning %s: %w", root, err)
	}
	preserve := scan.LoadPreserve(ctx, root)

	// 3. every name is resolved before anything is rewritten
	resolved, table := naming.ResolveAll(files, preserve)
	logger.Debug().Int("files", len(files)).Int("renamed", len(table)).Msg("resolved remote names")

	// 4. upload
	publisher := &Publisher{
		Provider:   opts.Provider,
		State:      st,
		Resolved:   resolved,
		Rewriter:   text.NewRewriter(table),
		Transforms: opts.Transforms,
		Recorder:   opts.Recorder,
		Clock:      opts.Clock,
		Lanes:      opts.Concurrency,
		OpTimeout:  opts.OpTimeout,
		Progress:   opts.Progress,
	}
	published, err := publisher.Publish(ctx, files)
	if err != nil {
		return nil, errors.Errorf("publishing: %w", err)
	}
	st.PruneWritten()

	// 5. garbage collection
	var swept SweepResult
	if opts.Delete {
		sweeper := &Sweeper{
			Provider:  opts.Provider,
			State:     st,
			Clock:     opts.Clock,
			Grace:     opts.Grace,
			OpTimeout: opts.OpTimeout,
			Recorder:  opts.Recorder,
		}
		swept = sweeper.Sweep(ctx)
	}

	report := &Report{
		URL:               opts.Provider.URL(),
		Uploaded:          published.Uploaded,
		Noop:              published.Noop,
		Errored:           published.Errored + swept.Errored,
		Derived:           published.Derived,
		QueuedForDeletion: len(st.Pending()),
		Deleted:           swept.Deleted,
	}

	// 6. persist
	if err := st.Save(ctx, opts.Provider); err != nil {
		logger.Error().Err(err).Msg("saving remote state")
		report.Errored++
	} else {
		for _, name := range []string{st.CachePath(), st.DeletePath()} {
			console.LogObjectOperation(ctx, log.ObjectOperation{Path: name, Remote: name, Kind: "state", Outcome: "uploaded"})
		}
	}

	opts.Recorder.SetPending(report.QueuedForDeletion)
	opts.Recorder.ObserveDeployDuration(opts.Clock.Since(start))

	console.Summary(log.Summary{
		URL:               report.URL,
		Uploaded:          report.Uploaded,
		Noop:              report.Noop,
		QueuedForDeletion: report.QueuedForDeletion,
		Deleted:           report.Deleted,
		Errored:           report.Errored,
	})
	return report, nil
}
