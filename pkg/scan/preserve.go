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

package scan

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🛡️ PreserveSet holds absolute paths that keep their literal names
type PreserveSet map[string]struct{}

// Has reports whether abs is preserved.
func (p PreserveSet) Has(abs string) bool {
	_, ok := p[abs]
	return ok
}

// FindUp searches dir and its parents for name.
func FindUp(dir, name string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// 🛡️ LoadPreserve reads the nearest .hoist-preserve at or above root. Each
// non-empty line not starting with # is a glob relative to the preserve
// file's directory. Any failure is logged and yields an empty set.
func LoadPreserve(ctx context.Context, root string) PreserveSet {
	logger := zerolog.Ctx(ctx)

	file, ok := FindUp(root, PreserveFileName)
	if !ok {
		return PreserveSet{}
	}

	set, err := readPreserve(file)
	if err != nil {
		logger.Error().Err(err).Str("file", file).Msg("ignoring preserve list")
		return PreserveSet{}
	}

	logger.Debug().Str("file", file).Int("preserved", len(set)).Msg("loaded preserve list")
	return set
}

func readPreserve(file string) (PreserveSet, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Errorf("reading preserve file: %w", err)
	}

	dir := filepath.Dir(file)
	fsys := os.DirFS(dir)
	set := PreserveSet{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		pattern := strings.TrimSpace(scanner.Text())
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "/")
		pattern = strings.TrimPrefix(pattern, "./")

		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Errorf("matching %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs := filepath.Join(dir, filepath.FromSlash(m))
			info, err := os.Stat(abs)
			if err != nil || info.IsDir() {
				continue
			}
			set[abs] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("scanning preserve file: %w", err)
	}

	return set, nil
}
