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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/log"
	"github.com/amiller-gh/hoist/pkg/provider/providertest"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func newOperator(t *testing.T, mem *providertest.Memory, clock clockwork.Clock, root string, del bool) Operator {
	t.Helper()
	op, err := New(Options{
		Provider:    mem,
		Root:        root,
		Bucket:      "example.com",
		Delete:      del,
		Concurrency: 4,
		Grace:       grace,
		OpTimeout:   time.Second,
		Clock:       clock,
	})
	require.NoError(t, err)
	return op
}

func siteFiles(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"index.html": []byte(`<html><head><link rel="stylesheet" href="style.css"></head><body><img src="logo.png"></body></html>`),
		"style.css":  []byte("body { background: url(logo.png); }\n"),
		"logo.png":   testPNG(t),
	}
}

func TestDeployScenario(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	writeTree(t, root, siteFiles(t))

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := providertest.NewMemory(clock)

	// first run: three files plus the css source map and the webp derivative
	first, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{URL: "https://memory.test", Uploaded: 5, Derived: 2}, first)

	logoName := hash.ContentFingerprint(testPNG(t))
	assert.Contains(t, mem.Names(), logoName)
	assert.Contains(t, mem.Names(), logoName+".webp")
	assert.Contains(t, mem.Names(), ".hoist-cache")
	assert.Contains(t, mem.Names(), ".hoist-delete")

	// second run: nothing changed
	clock.Advance(time.Hour)
	second, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{URL: "https://memory.test", Noop: 5, Derived: 2}, second)

	// third run: the logo is gone locally and waits out the grace period
	require.NoError(t, os.Remove(filepath.Join(root, "logo.png")))
	clock.Advance(time.Hour)
	third, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, third.QueuedForDeletion, "the image and its webp derivative")
	assert.Equal(t, 0, third.Deleted)
	assert.Equal(t, 0, third.Errored)
	assert.Contains(t, mem.Names(), logoName)

	// fourth run: past the grace period the stale objects are deleted
	clock.Advance(grace + time.Millisecond)
	fourth, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fourth.Deleted)
	assert.Equal(t, 0, fourth.QueuedForDeletion)
	assert.NotContains(t, mem.Names(), logoName)
	assert.NotContains(t, mem.Names(), logoName+".webp")
}

func TestDeployResurrection(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	files := siteFiles(t)
	writeTree(t, root, files)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := providertest.NewMemory(clock)

	_, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "logo.png")))
	clock.Advance(time.Minute)
	queued, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, queued.QueuedForDeletion)

	// the logo comes back after its entry is already past the grace period
	writeTree(t, root, map[string][]byte{"logo.png": files["logo.png"]})
	clock.Advance(2 * grace)
	back, err := newOperator(t, mem, clock, root, true).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Deleted)
	assert.Equal(t, 0, back.QueuedForDeletion)

	logoName := hash.ContentFingerprint(files["logo.png"])
	assert.Contains(t, mem.Names(), logoName)
	assert.Contains(t, mem.Names(), logoName+".webp")
}

func TestDeployWithoutDelete(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"a.txt": []byte("a"), "b.txt": []byte("b")})

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := providertest.NewMemory(clock)

	_, err := newOperator(t, mem, clock, root, false).Deploy(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	clock.Advance(10 * grace)
	_, err = newOperator(t, mem, clock, root, false).Deploy(ctx)
	require.NoError(t, err)
	clock.Advance(10 * grace)
	report, err := newOperator(t, mem, clock, root, false).Deploy(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 1, report.QueuedForDeletion)
	assert.Empty(t, mem.Deletes)
}

func TestDeployDeterminism(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	writeTree(t, root, siteFiles(t))

	run := func() *providertest.Memory {
		clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		mem := providertest.NewMemory(clock)
		_, err := newOperator(t, mem, clock, root, false).Deploy(ctx)
		require.NoError(t, err)
		return mem
	}

	a, b := run(), run()
	assert.Equal(t, a.Names(), b.Names())

	_, cacheA, ok := a.Object(".hoist-cache")
	require.True(t, ok)
	_, cacheB, ok := b.Object(".hoist-cache")
	require.True(t, ok)
	assert.True(t, bytes.Equal(cacheA, cacheB))
}

func TestDeploySubdir(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"outside.txt":     []byte("not published"),
		"blog/index.html": []byte("<p>blog</p>"),
		"blog/post.html":  []byte("<p>post</p>"),
	})

	mem := providertest.NewMemory(nil)
	op, err := New(Options{Provider: mem, Root: root, Subdir: "blog"})
	require.NoError(t, err)

	report, err := op.Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Uploaded)
	assert.Equal(t, []string{"blog/.hoist-cache", "blog/.hoist-delete", "blog/index.html", "blog/post"}, mem.Names())
}

func TestDeployStateSaveFailure(t *testing.T) {
	ctx := setupTestLogger(t)
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"a.txt": []byte("a")})

	mem := providertest.NewMemory(nil)
	mem.FailUpload = func(name string) error {
		if name == ".hoist-cache" {
			return errors.New("bucket is read only")
		}
		return nil
	}

	report, err := newOperator(t, mem, clockwork.NewFakeClock(), root, false).Deploy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Errored)
}

func TestDeployMissingRoot(t *testing.T) {
	ctx := setupTestLogger(t)
	mem := providertest.NewMemory(nil)
	_, err := newOperator(t, mem, clockwork.NewFakeClock(), filepath.Join(t.TempDir(), "nope"), false).Deploy(ctx)
	require.Error(t, err)
}

func TestUpDown(t *testing.T) {
	var console bytes.Buffer
	logger := log.NewWithZerolog(&console, zerolog.New(zerolog.NewTestWriter(t)), false)
	ctx := log.NewContext(setupTestLogger(t), logger)

	root := t.TempDir()
	writeTree(t, root, map[string][]byte{"index.html": []byte("<p>home</p>")})
	mem := providertest.NewMemory(nil)
	op := newOperator(t, mem, clockwork.NewFakeClock(), root, false)

	report, err := op.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.True(t, mem.Public)
	assert.Contains(t, console.String(), "1 items uploaded.")
	assert.Contains(t, console.String(), "https://memory.test")

	require.NoError(t, op.Down(ctx))
	assert.False(t, mem.Public)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Root: "."})
	assert.Error(t, err)

	_, err = New(Options{Provider: providertest.NewMemory(nil)})
	assert.Error(t, err)
}
