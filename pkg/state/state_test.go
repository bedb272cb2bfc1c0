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
	"testing"
	"time"

	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/amiller-gh/hoist/pkg/provider/providertest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func setupTestLogger(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func TestPaths(t *testing.T) {
	tests := []struct {
		subdir     string
		wantCache  string
		wantDelete string
		wantPrefix string
	}{
		{"", ".hoist-cache", ".hoist-delete", ""},
		{"blog", "blog/.hoist-cache", "blog/.hoist-delete", "blog/"},
		{"./blog/", "blog/.hoist-cache", "blog/.hoist-delete", "blog/"},
	}
	for _, tt := range tests {
		t.Run(tt.subdir, func(t *testing.T) {
			s := New(tt.subdir)
			assert.Equal(t, tt.wantCache, s.CachePath())
			assert.Equal(t, tt.wantDelete, s.DeletePath())
			assert.Equal(t, tt.wantPrefix, s.ListPrefix())
		})
	}

	assert.True(t, IsReserved("blog/.hoist-cache"))
	assert.True(t, IsReserved(".hoist-delete"))
	assert.False(t, IsReserved("blog/hoist-cache.css"))
}

func TestLoadAndSave(t *testing.T) {
	ctx := setupTestLogger(t)

	t.Run("missing_state_is_empty", func(t *testing.T) {
		mem := providertest.NewMemory(nil)
		s := Load(ctx, mem, "")
		assert.Empty(t, s.SeenKeys())
		assert.Empty(t, s.Pending())
	})

	t.Run("round_trip", func(t *testing.T) {
		mem := providertest.NewMemory(nil)
		s := New("site")
		assert.False(t, s.Claim("b-key", "site/b"))
		assert.False(t, s.Claim("a-key", "site/a"))
		s.MarkPending("old-key", 1700000000000)
		require.NoError(t, s.Save(ctx, mem))

		obj, raw, ok := mem.Object("site/.hoist-cache")
		require.True(t, ok)
		assert.Equal(t, "gzip", obj.ContentEncoding)
		assert.Equal(t, "application/json", obj.ContentType)
		assert.Equal(t, NoCache, obj.CacheControl)
		decoded, err := provider.Decode(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `["a-key","b-key"]`, string(decoded), "seen keys are stored sorted")

		loaded := Load(ctx, mem, "site")
		assert.Equal(t, []string{"a-key", "b-key"}, loaded.SeenKeys())
		assert.Equal(t, []PendingEntry{{Key: "old-key", FirstSeen: 1700000000000}}, loaded.Pending())
	})

	t.Run("deterministic_encoding", func(t *testing.T) {
		build := func(order []string) ([]byte, []byte) {
			s := New("")
			for _, k := range order {
				s.Claim(k, "n/"+k)
				s.MarkPending("p-"+k, 42)
			}
			cache, pending, err := s.Encode()
			require.NoError(t, err)
			return cache, pending
		}
		c1, p1 := build([]string{"x", "y", "z"})
		c2, p2 := build([]string{"z", "x", "y"})
		assert.Equal(t, c1, c2)
		assert.Equal(t, p1, p2)
	})

	t.Run("unreadable_state_is_empty", func(t *testing.T) {
		m := &providertest.MockProvider{}
		m.On("Get", mock.Anything, ".hoist-cache").Return(nil, errors.New("connection reset"))
		m.On("Get", mock.Anything, ".hoist-delete").Return([]byte("{not json"), nil)

		s := Load(ctx, m, "")
		assert.Empty(t, s.SeenKeys())
		assert.Empty(t, s.Pending())
		m.AssertExpectations(t)
	})

	t.Run("save_failure", func(t *testing.T) {
		mem := providertest.NewMemory(nil)
		mem.FailUpload = func(name string) error { return errors.New("quota exceeded") }
		err := New("").Save(ctx, mem)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "saving .hoist-cache")
	})
}

func TestReconcile(t *testing.T) {
	ctx := setupTestLogger(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mem := providertest.NewMemory(nil)
	for name, body := range map[string]string{
		"blog/Qm9v":         "png",
		"blog/about":        "<h1>about</h1>",
		"blog/.hoist-cache": "[]",
		"other/index.html":  "outside",
	} {
		_, err := mem.Upload(ctx, []byte(body), name, provider.Headers{})
		require.NoError(t, err)
	}

	s := New("blog")
	existing := hash.CacheKeyOf("blog/Qm9v", []byte("png"))
	s.MarkPending(existing, 1000)

	added := s.Reconcile(ctx, mem, now)
	assert.Equal(t, 1, added, "only blog/about is new; state objects and other subdirs are skipped")

	aboutKey := hash.CacheKeyOf("blog/about", []byte("<h1>about</h1>"))
	assert.Equal(t, []PendingEntry{
		{Key: existing, FirstSeen: 1000},
		{Key: aboutKey, FirstSeen: now.UnixMilli()},
	}, sortedByFirstSeen(s.Pending()), "first observation wins")

	name, ok := s.NameOf(aboutKey)
	require.True(t, ok)
	assert.Equal(t, "blog/about", name)

	assert.True(t, s.Listed())

	t.Run("listing_failure", func(t *testing.T) {
		mem.FailList = errors.New("503")
		defer func() { mem.FailList = nil }()
		fresh := New("blog")
		assert.Equal(t, 0, fresh.Reconcile(ctx, mem, now))
		assert.Empty(t, fresh.Pending())
		assert.False(t, fresh.Listed())
	})
}

func TestPruneWritten(t *testing.T) {
	ctx := setupTestLogger(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mem := providertest.NewMemory(nil)
	_, err := mem.Upload(ctx, []byte("<p>old</p>"), "index.html", provider.Headers{})
	require.NoError(t, err)
	_, err = mem.Upload(ctx, []byte("gone"), "Zz1", provider.Headers{})
	require.NoError(t, err)

	s := New("")
	goneKey := hash.CacheKeyOf("Zz1", []byte("gone"))
	assert.Equal(t, 2, s.Reconcile(ctx, mem, now))

	// the page changed, so a new key claims the same name
	assert.False(t, s.Claim(hash.CacheKeyOf("index.html", []byte("<p>new</p>")), "index.html"))

	assert.Equal(t, 1, s.PruneWritten())
	assert.Equal(t, []PendingEntry{{Key: goneKey, FirstSeen: now.UnixMilli()}}, s.Pending())
}

func TestClaim(t *testing.T) {
	s := New("")
	s.MarkPending("k", 5)

	assert.False(t, s.Claim("k", "app"), "first claim must upload")
	assert.Empty(t, s.Pending(), "claim resurrects pending entries")
	assert.True(t, s.Written("app"))
	assert.True(t, s.Claim("k", "app"), "second claim is a no-op")

	s.Release("k")
	assert.False(t, s.Seen("k"))
	assert.False(t, s.Claim("k", "app"), "released keys are retried")

	s.MarkPending("k", 7)
	s.Forget("k")
	assert.False(t, s.Seen("k"))
	assert.Empty(t, s.Pending())
}

func sortedByFirstSeen(entries []PendingEntry) []PendingEntry {
	out := append([]PendingEntry(nil), entries...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].FirstSeen < out[j-1].FirstSeen; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
