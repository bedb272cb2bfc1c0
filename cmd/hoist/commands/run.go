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

package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/amiller-gh/hoist/cmd/hoist/opts"
	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/metrics"
	"github.com/amiller-gh/hoist/pkg/operation"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// target is the parsed [dir] [subdir] positional pair
type target struct {
	Root   string
	Subdir string
}

func parseTarget(args []string) (target, error) {
	t := target{Root: "."}
	if len(args) > 0 && args[0] != "" {
		t.Root = args[0]
	}
	if len(args) > 1 {
		t.Subdir = filepath.ToSlash(filepath.Clean(args[1]))
		if t.Subdir == "." {
			t.Subdir = ""
		}
	}

	root, err := filepath.Abs(t.Root)
	if err != nil {
		return t, errors.Errorf("resolving %s: %w", t.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return t, errors.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		return t, errors.Errorf("%s is not a directory", root)
	}
	t.Root = root
	return t, nil
}

// 🏗️ newOperator resolves config for the target, opens its backend and
// builds an operator. The returned finish func stops the progress bar and
// flushes metrics; it must always be called.
func newOperator(ctx context.Context, o *opts.RootOpts, t target) (operation.Operator, func(), error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Resolve(ctx, t.Root)
	if err != nil {
		return nil, nil, err
	}
	cfg.WithBucket(o.Bucket)
	if o.Concurrency > 0 {
		cfg.Concurrency = o.Concurrency
	}
	logger.Debug().Str("config", cfg.Source).Str("target", cfg.String()).Msg("resolved configuration")

	p, err := provider.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var prom *metrics.PrometheusRecorder
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if o.MetricsFile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	bar := newProgressBar(o.Debug)

	op, err := operation.New(operation.Options{
		Provider:    p,
		Root:        t.Root,
		Subdir:      t.Subdir,
		Bucket:      cfg.Bucket,
		Delete:      o.Delete,
		Concurrency: cfg.Concurrency,
		Grace:       cfg.Grace,
		OpTimeout:   cfg.OpTimeout,
		Recorder:    recorder,
		Progress:    bar.update,
	})
	if err != nil {
		bar.stop()
		closeProvider(ctx, p)
		return nil, nil, errors.Errorf("creating operator: %w", err)
	}

	finish := func() {
		bar.stop()
		closeProvider(ctx, p)
		if prom == nil {
			return
		}
		if err := prom.WriteTextfile(o.MetricsFile); err != nil {
			logger.Warn().Err(err).Str("path", o.MetricsFile).Msg("writing metrics textfile")
		}
	}
	return op, finish, nil
}

func closeProvider(ctx context.Context, p provider.Provider) {
	c, ok := p.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("closing provider")
	}
}

// 📊 progressBar adapts a pterm progress bar to status.ProgressFunc. It is
// disabled in debug mode, where every object is printed instead.
type progressBar struct {
	disabled bool
	bar      *pterm.ProgressbarPrinter
}

func newProgressBar(disabled bool) *progressBar {
	return &progressBar{disabled: disabled}
}

func (p *progressBar) update(completed, total int) {
	if p.disabled || total == 0 {
		return
	}
	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("Publishing").WithRemoveWhenDone(true).Start()
		if err != nil {
			p.disabled = true
			return
		}
		p.bar = bar
	}
	if p.bar.Total != total {
		p.bar.Total = total
	}
	if delta := completed - p.bar.Current; delta > 0 {
		p.bar.Add(delta)
	}
}

func (p *progressBar) stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}
