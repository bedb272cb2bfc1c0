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

package state

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Reserved object names, stored at the root of the published subdirectory.
const (
	CacheFileName  = ".hoist-cache"
	DeleteFileName = ".hoist-delete"

	// NoCache keeps every reader on fresh state.
	NoCache = "no-cache,no-store,max-age=0"
)

// IsReserved reports whether name is one of the state objects.
func IsReserved(name string) bool {
	base := path.Base(name)
	return base == CacheFileName || base == DeleteFileName
}

// 📦 PendingEntry is one object waiting out its grace period
type PendingEntry struct {
	Key       string
	FirstSeen int64 // epoch milliseconds
}

// 📦 State is the run-scoped view of what the remote store holds. Seen is the
// set of cache keys known to be present and byte-identical; Pending maps a
// cache key to when it was first observed as possibly stale.
type State struct {
	mu      sync.Mutex
	subdir  string
	seen    map[string]struct{}
	pending map[string]int64

	// not persisted
	names   map[string]string   // cache key -> listed object name
	written map[string]struct{} // remote names decided this run
	listed  bool
}

// 🏭 New creates empty state for subdir
func New(subdir string) *State {
	return &State{
		subdir:  path.Clean("/" + subdir)[1:],
		seen:    make(map[string]struct{}),
		pending: make(map[string]int64),
		names:   make(map[string]string),
		written: make(map[string]struct{}),
	}
}

// CachePath is where the seen set is stored.
func (s *State) CachePath() string {
	return path.Join(s.subdir, CacheFileName)
}

// DeletePath is where the pending map is stored.
func (s *State) DeletePath() string {
	return path.Join(s.subdir, DeleteFileName)
}

// ListPrefix scopes listing to the subdirectory.
func (s *State) ListPrefix() string {
	if s.subdir == "" {
		return ""
	}
	return s.subdir + "/"
}

// 📥 Load fetches both state objects. Missing or unreadable state is
// treated as empty; this never fails.
func Load(ctx context.Context, p provider.Provider, subdir string) *State {
	logger := zerolog.Ctx(ctx)
	s := New(subdir)

	seen, err := provider.GetJSON[[]string](ctx, p, s.CachePath())
	switch {
	case errors.Is(err, provider.ErrNotFound):
		logger.Debug().Str("object", s.CachePath()).Msg("no prior cache state")
	case err != nil:
		logger.Warn().Err(err).Str("object", s.CachePath()).Msg("ignoring unreadable cache state")
	default:
		for _, key := range seen {
			s.seen[key] = struct{}{}
		}
	}

	pending, err := provider.GetJSON[map[string]int64](ctx, p, s.DeletePath())
	switch {
	case errors.Is(err, provider.ErrNotFound):
		logger.Debug().Str("object", s.DeletePath()).Msg("no prior delete state")
	case err != nil:
		logger.Warn().Err(err).Str("object", s.DeletePath()).Msg("ignoring unreadable delete state")
	default:
		for key, ts := range pending {
			s.pending[key] = ts
		}
	}

	logger.Debug().Int("seen", len(s.seen)).Int("pending", len(s.pending)).Msg("loaded remote state")
	return s
}

// 🔍 Reconcile lists the remote subdirectory and marks every object not
// already pending as pending since now. Objects republished during the run
// are claimed out of Pending again, so only objects that no local file
// produces stay behind. A listing failure is logged and adds nothing.
func (s *State) Reconcile(ctx context.Context, p provider.Provider, now time.Time) int {
	logger := zerolog.Ctx(ctx)

	objects, err := p.List(ctx, s.ListPrefix())
	if err != nil {
		logger.Warn().Err(err).Str("prefix", s.ListPrefix()).Msg("listing remote objects")
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listed = true
	added := 0
	ts := now.UnixMilli()
	for _, obj := range objects {
		if IsReserved(obj.Name) || obj.ContentHash == "" {
			continue
		}
		key := hash.CacheKey(obj.Name, obj.ContentHash)
		s.names[key] = obj.Name
		if _, ok := s.pending[key]; !ok {
			s.pending[key] = ts
			added++
		}
	}

	logger.Debug().Int("listed", len(objects)).Int("added", added).Msg("reconciled remote listing")
	return added
}

// 🔒 Claim is the upload decision for key under remote name. It resurrects
// key out of Pending and reports whether the object is already present.
// When it is not, key is recorded as seen and the caller must upload it
// (and Release it on failure).
func (s *State) Claim(key, name string) (present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	s.written[name] = struct{}{}
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = struct{}{}
	return false
}

// Release undoes a Claim whose upload failed so the next run retries it.
func (s *State) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

// Forget drops key entirely after its object was deleted.
func (s *State) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	delete(s.seen, key)
}

// Listed reports whether Reconcile saw a complete listing. Without one,
// NameOf cannot tell a vanished object from an unlisted one.
func (s *State) Listed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listed
}

// 🧹 PruneWritten forgets pending keys whose object name was rewritten with
// different content during this run; the old bytes no longer exist.
func (s *State) PruneWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for key := range s.pending {
		name, ok := s.names[key]
		if !ok {
			continue
		}
		if _, ok := s.written[name]; ok {
			delete(s.pending, key)
			delete(s.seen, key)
			pruned++
		}
	}
	return pruned
}

// Written reports whether name was decided during this run.
func (s *State) Written(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.written[name]
	return ok
}

// NameOf returns the listed object name for key.
func (s *State) NameOf(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[key]
	return name, ok
}

// Seen reports whether key is in the seen set.
func (s *State) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// SeenKeys returns the seen set sorted.
func (s *State) SeenKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.seen))
	for key := range s.seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Pending returns the pending entries sorted by key.
func (s *State) Pending() []PendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingEntry, 0, len(s.pending))
	for key, ts := range s.pending {
		out = append(out, PendingEntry{Key: key, FirstSeen: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MarkPending records key as pending since ts unless it already is.
func (s *State) MarkPending(key string, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		s.pending[key] = ts
	}
}

// Encode renders the two state documents.
func (s *State) Encode() (cache, pending []byte, err error) {
	keys := s.SeenKeys()

	s.mu.Lock()
	snapshot := make(map[string]int64, len(s.pending))
	for key, ts := range s.pending {
		snapshot[key] = ts
	}
	s.mu.Unlock()

	cache, err = json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return nil, nil, errors.Errorf("encoding cache state: %w", err)
	}
	pending, err = json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, nil, errors.Errorf("encoding delete state: %w", err)
	}
	return cache, pending, nil
}

// 📤 Save writes both state objects, gzip-compressed with no-cache headers.
// State writes never pass through Claim.
func (s *State) Save(ctx context.Context, p provider.Provider) error {
	cache, pending, err := s.Encode()
	if err != nil {
		return err
	}

	for _, doc := range []struct {
		name string
		data []byte
	}{
		{s.CachePath(), cache},
		{s.DeletePath(), pending},
	} {
		zipped, err := provider.Gzip(doc.data)
		if err != nil {
			return errors.Errorf("compressing %s: %w", doc.name, err)
		}
		_, err = p.Upload(ctx, zipped, doc.name, provider.Headers{
			ContentType:     "application/json",
			ContentEncoding: "gzip",
			CacheControl:    NoCache,
			ContentSize:     len(doc.data),
		})
		if err != nil {
			return errors.Errorf("saving %s: %w", doc.name, err)
		}
	}

	zerolog.Ctx(ctx).Debug().Int("cache_bytes", len(cache)).Int("delete_bytes", len(pending)).Msg("saved remote state")
	return nil
}
