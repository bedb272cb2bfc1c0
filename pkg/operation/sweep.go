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
	"github.com/amiller-gh/hoist/pkg/state"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// 📦 SweepResult is what one garbage collection pass did
type SweepResult struct {
	Deleted   int
	Errored   int
	Dropped   int // entries whose object was already gone
	Remaining int
}

// 🧹 Sweeper deletes objects that have been pending for at least the grace
// period and were not written during this run.
type Sweeper struct {
	Provider  provider.Provider
	State     *state.State
	Clock     clockwork.Clock
	Grace     time.Duration
	OpTimeout time.Duration
	Recorder  metrics.Recorder
}

func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	logger := zerolog.Ctx(ctx)
	if s.Recorder == nil {
		s.Recorder = metrics.NoopRecorder{}
	}
	if s.OpTimeout <= 0 {
		s.OpTimeout = config.DefaultTimeout
	}

	var result SweepResult
	now := s.Clock.Now().UnixMilli()
	grace := s.Grace.Milliseconds()
	listed := s.State.Listed()

	for _, entry := range s.State.Pending() {
		if now-entry.FirstSeen < grace {
			continue
		}

		name, ok := s.State.NameOf(entry.Key)
		if !ok {
			// only trust absence from a complete listing
			if listed {
				s.State.Forget(entry.Key)
				result.Dropped++
			}
			continue
		}
		if s.State.Written(name) {
			s.State.Forget(entry.Key)
			continue
		}

		if s.delete(ctx, name) {
			s.State.Forget(entry.Key)
			result.Deleted++
		} else {
			result.Errored++
		}
	}

	result.Remaining = len(s.State.Pending())
	logger.Debug().
		Int("deleted", result.Deleted).
		Int("errored", result.Errored).
		Int("dropped", result.Dropped).
		Int("remaining", result.Remaining).
		Msg("swept stale objects")
	return result
}

func (s *Sweeper) delete(ctx context.Context, name string) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.OpTimeout)
	defer cancel()

	_, err := s.Provider.Delete(opCtx, name)
	s.Recorder.IncDelete(err == nil)

	outcome := "deleted"
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("remote", name).Msg("deleting stale object")
		outcome = "failed"
	}
	log.FromContext(ctx).LogObjectOperation(ctx, log.ObjectOperation{
		Remote:  name,
		Kind:    "stale",
		Outcome: outcome,
	})
	return err == nil
}
