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
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/state"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// PreserveFileName lists globs of files that keep their literal names.
const PreserveFileName = ".hoist-preserve"

// SystemFiles are skipped by basename wherever they appear in the tree.
var SystemFiles = map[string]bool{
	PreserveFileName:     true,
	state.CacheFileName:  true,
	state.DeleteFileName: true,
	"gcloud.json":        true,
	"hoist.yaml":         true,
	"hoist.yml":          true,
	"hoist.hcl":          true,
	"hoist.json":         true,
	".env":               true,
}

// 📄 File is one local file selected for publishing
type File struct {
	Path        string // posix path relative to root
	Abs         string // absolute filesystem path
	Buffer      []byte
	ContentHash string
}

// 🔧 Options configure a scan
type Options struct {
	Root    string
	Subdir  string
	Exclude map[string]bool // defaults to SystemFiles
}

// 🔍 Scan walks Root/Subdir and returns every publishable file sorted by
// path. Unreadable files are logged and skipped.
func Scan(ctx context.Context, opts Options) ([]*File, error) {
	logger := zerolog.Ctx(ctx)

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Errorf("resolving root: %w", err)
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = SystemFiles
	}

	start := filepath.Join(root, filepath.FromSlash(opts.Subdir))
	info, err := os.Stat(start)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", start, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", start)
	}

	var files []*File
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable path")
			if d != nil && d.IsDir() && p != start {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || exclude[d.Name()] {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", p, err)
		}

		buf, err := os.ReadFile(p)
		if err != nil {
			logger.Warn().Err(err).Str("file", p).Msg("skipping unreadable file")
			return nil
		}

		files = append(files, &File{
			Path:        path.Clean(filepath.ToSlash(rel)),
			Abs:         p,
			Buffer:      buf,
			ContentHash: hash.ContentFingerprint(buf),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", start, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	logger.Debug().Int("files", len(files)).Str("root", root).Msg("scanned local tree")
	return files, nil
}
