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

// Package naming decides the remote object name and cache headers of every
// local file before anything is uploaded.
package naming

import (
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/amiller-gh/hoist/pkg/scan"
)

// Cache-Control directives.
const (
	Immutable  = "public,max-age=31536000,immutable"
	Revalidate = "public,max-age=0"
)

// DefaultContentType is used when the extension is unknown.
const DefaultContentType = "application/octet-stream"

// WellKnown basenames always keep their literal name.
var WellKnown = map[string]bool{
	"favicon.ico": true,
	"robots.txt":  true,
	"index.html":  true,
	"404.html":    true,
}

// 🔍 Eligible reports whether the file at p may be renamed. Preserved files,
// well-known basenames, anything below a .well-known segment and JSON
// documents are never renamed.
func Eligible(p string, preserved bool) bool {
	if preserved || WellKnown[path.Base(p)] {
		return false
	}
	if strings.EqualFold(path.Ext(p), ".json") {
		return false
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".well-known" {
			return false
		}
	}
	return true
}

// IsHTML reports whether p is an HTML page.
func IsHTML(p string) bool {
	return strings.EqualFold(path.Ext(p), ".html")
}

// site types are pinned so resolution does not depend on the host's mime.types
var types = map[string]string{
	".avif":  "image/avif",
	".css":   "text/css; charset=utf-8",
	".gif":   "image/gif",
	".htm":   "text/html; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".ico":   "image/x-icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".mjs":   "text/javascript; charset=utf-8",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".txt":   "text/plain; charset=utf-8",
	".wasm":  "application/wasm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".xml":   "text/xml; charset=utf-8",
}

// ContentType guesses the media type of p from its extension.
func ContentType(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if t, ok := types[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return DefaultContentType
}

// 📦 Resolution is where one local file ends up remotely
type Resolution struct {
	Path         string // local posix path relative to root
	Remote       string // remote object name
	ContentType  string
	CacheControl string
	Preserved    bool
}

// Renamed reports whether the remote name differs from the local path.
func (r *Resolution) Renamed() bool {
	return r.Remote != r.Path
}

// Table maps a local path to its resolved remote name. Only assets other
// files can reference by name are included.
type Table map[string]string

// Sorted returns the table's local paths longest first, ties broken
// lexically so the order is stable.
func (t Table) Sorted() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// 🎯 Resolve computes the Resolution of a single file.
func Resolve(file *scan.File, preserve scan.PreserveSet) *Resolution {
	preserved := preserve.Has(file.Abs)
	res := &Resolution{
		Path:         file.Path,
		Remote:       file.Path,
		ContentType:  ContentType(file.Path),
		CacheControl: Revalidate,
		Preserved:    preserved,
	}

	eligible := Eligible(file.Path, preserved)
	switch {
	case IsHTML(file.Path):
		if eligible {
			res.Remote = strings.TrimSuffix(file.Path, path.Ext(file.Path))
		}
	case eligible:
		res.Remote = path.Join(path.Dir(file.Path), file.ContentHash)
		res.CacheControl = Immutable
	}
	return res
}

// 🗺️ ResolveAll resolves every file and builds the rewrite table. It must
// finish before any file is rewritten.
func ResolveAll(files []*scan.File, preserve scan.PreserveSet) (map[string]*Resolution, Table) {
	resolved := make(map[string]*Resolution, len(files))
	table := make(Table)
	for _, file := range files {
		res := Resolve(file, preserve)
		resolved[file.Path] = res
		if IsHTML(file.Path) || strings.EqualFold(path.Ext(file.Path), ".json") {
			continue
		}
		if res.Renamed() {
			table[file.Path] = res.Remote
		}
	}
	return resolved, table
}
