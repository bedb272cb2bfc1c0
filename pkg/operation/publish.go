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
	"path"
	"strings"
	"time"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/log"
	"github.com/amiller-gh/hoist/pkg/metrics"
	"github.com/amiller-gh/hoist/pkg/naming"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/amiller-gh/hoist/pkg/scan"
	"github.com/amiller-gh/hoist/pkg/state"
	"github.com/amiller-gh/hoist/pkg/status"
	"github.com/amiller-gh/hoist/pkg/text"
	"github.com/amiller-gh/hoist/pkg/transform"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 📦 Result is what one publish pass did
type Result struct {
	Uploaded int
	Noop     int
	Errored  int
	Derived  int
}

// 🚚 Publisher uploads files over a fixed number of lanes. Files are dealt
// to lanes round-robin; a lane handles its files in order and a failed file
// never stops its lane or any other.
type Publisher struct {
	Provider   provider.Provider
	State      *state.State
	Resolved   map[string]*naming.Resolution
	Rewriter   *text.Rewriter
	Transforms *transform.Registry
	Recorder   metrics.Recorder
	Clock      clockwork.Clock
	Lanes      int
	OpTimeout  time.Duration
	Progress   status.ProgressFunc

	tracker *status.Tracker
}

// 🚀 Publish runs the per-file pipeline for every file and waits for all
// lanes to drain. It only fails when ctx is cancelled.
func (p *Publisher) Publish(ctx context.Context, files []*scan.File) (Result, error) {
	lanes := p.Lanes
	if lanes <= 0 {
		lanes = 1
	}
	if p.Recorder == nil {
		p.Recorder = metrics.NoopRecorder{}
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.OpTimeout <= 0 {
		p.OpTimeout = config.DefaultTimeout
	}
	p.tracker = status.NewTracker(len(files), p.Progress, metrics.Observer(p.Recorder))

	queues := make([][]*scan.File, lanes)
	for i, file := range files {
		queues[i%lanes] = append(queues[i%lanes], file)
	}

	var g errgroup.Group
	for lane, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		g.Go(func() error {
			logger := zerolog.Ctx(ctx).With().Int("lane", lane).Logger()
			laneCtx := logger.WithContext(ctx)
			for _, file := range queue {
				if err := ctx.Err(); err != nil {
					return errors.Errorf("lane %d: %w", lane, err)
				}
				p.publishFile(laneCtx, file)
			}
			return nil
		})
	}
	err := g.Wait()

	counts := p.tracker.Counts()
	result := Result{
		Uploaded: counts.Uploaded,
		Noop:     counts.Noop,
		Errored:  counts.Errored,
		Derived:  counts.Derived,
	}
	return result, err
}

func isStylesheet(p string) bool {
	return strings.EqualFold(path.Ext(p), ".css")
}

func (p *Publisher) publishFile(ctx context.Context, file *scan.File) {
	logger := zerolog.Ctx(ctx)

	res, ok := p.Resolved[file.Path]
	if !ok {
		res = naming.Resolve(file, nil)
	}

	buf := file.Buffer
	if p.Rewriter != nil && (naming.IsHTML(file.Path) || isStylesheet(file.Path)) {
		buf = p.Rewriter.ReplaceText(ctx, file.Path, buf).ModifiedContent
	}

	out := transform.Passthrough(buf)
	if t := p.Transforms.For(file.Path); t != nil {
		transformed, err := t.Transform(ctx, &transform.File{
			Path:         file.Path,
			Remote:       res.Remote,
			ContentType:  res.ContentType,
			CacheControl: res.CacheControl,
			Buffer:       buf,
		}, p.emit)
		if err != nil {
			logger.Warn().Err(err).Str("file", file.Path).Msg("transform failed, uploading original")
		} else {
			out = transformed
		}
	}
	if err := transform.Compress(out, res.ContentType); err != nil {
		logger.Warn().Err(err).Str("file", file.Path).Msg("uploading uncompressed")
	}

	p.upload(ctx, status.Record{
		Path:   file.Path,
		Remote: res.Remote,
		Size:   out.ContentSize,
	}, out.Buffer, provider.Headers{
		ContentType:     res.ContentType,
		ContentEncoding: out.ContentEncoding,
		CacheControl:    res.CacheControl,
		ContentSize:     out.ContentSize,
	})
}

// emit uploads an artifact produced by a transform. Upload failures are
// counted, not returned, so the transform can finish its primary output.
func (p *Publisher) emit(ctx context.Context, a *transform.Artifact) error {
	p.tracker.Grow(1)

	out := &transform.Output{Buffer: a.Buffer, ContentEncoding: a.ContentEncoding, ContentSize: a.ContentSize}
	if err := transform.Compress(out, a.ContentType); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", a.FilePath).Msg("uploading uncompressed")
	}

	p.upload(ctx, status.Record{
		Path:    a.FilePath,
		Remote:  a.RemoteName,
		Derived: true,
		Size:    out.ContentSize,
	}, out.Buffer, provider.Headers{
		ContentType:     a.ContentType,
		ContentEncoding: out.ContentEncoding,
		CacheControl:    a.CacheControl,
		ContentSize:     out.ContentSize,
	})
	return nil
}

// 🔒 upload makes the upload decision for buf under rec.Remote and performs
// the network call outside the state lock.
func (p *Publisher) upload(ctx context.Context, rec status.Record, buf []byte, headers provider.Headers) {
	key := hash.CacheKeyOf(rec.Remote, buf)

	if p.State.Claim(key, rec.Remote) {
		rec.Outcome = status.OutcomeNoop
		p.finish(ctx, rec)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, p.OpTimeout)
	defer cancel()

	start := p.Clock.Now()
	_, err := p.Provider.Upload(opCtx, buf, rec.Remote, headers)
	p.Recorder.ObserveUploadDuration(p.Clock.Since(start))
	if err != nil {
		p.State.Release(key)
		rec.Outcome = status.OutcomeError
		rec.Err = errors.Errorf("uploading %s: %w", rec.Remote, err)
	} else {
		rec.Outcome = status.OutcomeSuccess
	}
	p.finish(ctx, rec)
}

func (p *Publisher) finish(ctx context.Context, rec status.Record) {
	p.tracker.Track(ctx, rec)

	kind := "primary"
	if rec.Derived {
		kind = "derivative"
		if strings.HasSuffix(rec.Remote, ".map") {
			kind = "sourcemap"
		}
	}
	log.FromContext(ctx).LogObjectOperation(ctx, log.ObjectOperation{
		Path:    rec.Path,
		Remote:  rec.Remote,
		Kind:    kind,
		Outcome: rec.Outcome.Label(),
		Size:    rec.Size,
	})
}
