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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/provider/emulator"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(setupTestLogger(t))
}

func TestDeployEmulated(t *testing.T) {
	site := t.TempDir()
	store := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte(`<html><body><img src="/logo.svg"></body></html>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "logo.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "about.html"), []byte(`<html><body><h1>about</h1></body></html>`), 0o644))

	t.Setenv("HOIST_EMULATE", "http://hoist.test")
	t.Setenv("HOIST_EMULATOR_DIR", store)

	require.NoError(t, run(t, "deploy", "--debug", site))

	ctx := setupTestLogger(t)
	emu, err := emulator.Open(ctx, filepath.Join(store, "hoist.test-80.db"), "http://hoist.test", clockwork.NewRealClock())
	require.NoError(t, err)
	defer emu.Close()

	objects, err := emu.List(ctx, "")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, obj := range objects {
		names[obj.Name] = true
	}
	assert.True(t, names["index.html"], "index pages keep their name")
	assert.True(t, names["about"], "other pages are published without their extension")
	assert.False(t, names["about.html"])
	assert.True(t, names[".hoist-cache"], "state is saved")
	assert.False(t, names["logo.svg"], "assets are published under their content hash")
}

func TestUpDownEmulated(t *testing.T) {
	site := t.TempDir()
	store := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte(`<p>hi</p>`), 0o644))

	t.Setenv("HOIST_EMULATE", "http://hoist.test:8080")
	t.Setenv("HOIST_EMULATOR_DIR", store)

	require.NoError(t, run(t, "up", "--debug", site))

	ctx := setupTestLogger(t)
	path := filepath.Join(store, "hoist.test-8080.db")

	emu, err := emulator.Open(ctx, path, "", clockwork.NewRealClock())
	require.NoError(t, err)
	assert.True(t, emu.Public())
	require.NoError(t, emu.Close())

	require.NoError(t, run(t, "down", "--debug", site))

	emu, err = emulator.Open(ctx, path, "", clockwork.NewRealClock())
	require.NoError(t, err)
	defer emu.Close()
	assert.False(t, emu.Public())
}

func TestMissingConfig(t *testing.T) {
	t.Setenv("HOIST_EMULATE", "")
	site := t.TempDir()

	err := run(t, "deploy", site)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigMissing)
	assert.Equal(t, 2, exitCode(err))
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "root_not_a_directory", args: []string{"deploy", filepath.Join(t.TempDir(), "missing")}},
		{name: "too_many_args", args: []string{"deploy", "a", "b", "c"}},
		{name: "down_takes_one_dir", args: []string{"down", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, 1, exitCode(err))
		})
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "text",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "🚀 hoist ")
				assert.Contains(t, out, runtime.Version())
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var b build
				require.NoError(t, json.Unmarshal([]byte(out), &b))
				assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
				assert.NotEmpty(t, b.Version)
			},
		},
		{
			name: "flag",
			args: []string{"--version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, readBuild().short())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(out)
			require.NoError(t, cmd.ExecuteContext(setupTestLogger(t)))
			tt.check(t, out.String())
		})
	}
}
