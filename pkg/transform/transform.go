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

// Package transform holds the per-content-type processors that run before a
// file is uploaded: minifiers, image recompression and gzip.
package transform

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/amiller-gh/hoist/pkg/provider"
	"gitlab.com/tozd/go/errors"
)

// Immutable is the Cache-Control of every derived artifact.
const Immutable = "public,max-age=31536000,immutable"

// 📦 File is the input of a transform
type File struct {
	Path         string // local posix path
	Remote       string // resolved remote name
	ContentType  string
	CacheControl string
	Buffer       []byte
}

// 📦 Artifact is an extra object produced alongside the primary upload
type Artifact struct {
	FilePath        string
	RemoteName      string
	Buffer          []byte
	ContentType     string
	ContentEncoding string
	CacheControl    string
	ContentSize     int
}

// 📦 Output is the primary transformed buffer
type Output struct {
	Buffer          []byte
	ContentEncoding string
	ContentSize     int // size before encoding
}

// EmitFunc uploads a derived artifact.
type EmitFunc func(ctx context.Context, artifact *Artifact) error

// 🔧 Transformer processes one file, emitting derived artifacts as it goes.
type Transformer interface {
	Transform(ctx context.Context, file *File, emit EmitFunc) (*Output, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, file *File, emit EmitFunc) (*Output, error)

func (f TransformerFunc) Transform(ctx context.Context, file *File, emit EmitFunc) (*Output, error) {
	return f(ctx, file, emit)
}

// 🗂️ Registry selects a Transformer by file extension.
type Registry struct {
	byExt map[string]Transformer
}

// 🏭 NewRegistry creates a registry with the default transforms.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Transformer)}
	markup := NewMarkup()
	images := NewImage()
	r.Register(".css", NewStylesheet())
	r.Register(".js", NewScript())
	r.Register(".html", markup)
	r.Register(".svg", markup)
	r.Register(".jpg", images)
	r.Register(".jpeg", images)
	r.Register(".png", images)
	r.Register(".gif", images)
	return r
}

// Register sets the transform for ext, replacing any previous one.
func (r *Registry) Register(ext string, t Transformer) {
	r.byExt[strings.ToLower(ext)] = t
}

// For returns the transform for p, or nil. Already minified scripts have none.
func (r *Registry) For(p string) Transformer {
	if IsMinified(p) {
		return nil
	}
	return r.byExt[strings.ToLower(path.Ext(p))]
}

// IsMinified reports whether p follows the *.min.js naming convention.
func IsMinified(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".min.js")
}

// compressible media types outside text/*
var compressible = map[string]bool{
	"application/json":          true,
	"application/javascript":    true,
	"application/xml":           true,
	"application/wasm":          true,
	"application/manifest+json": true,
	"image/svg+xml":             true,
	"image/x-icon":              true,
}

// Compressible reports whether content of contentType benefits from gzip.
func Compressible(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || compressible[mediaType]
}

// 🗜️ Compress gzips out in place when contentType is compressible and out is
// not already encoded.
func Compress(out *Output, contentType string) error {
	if out.ContentEncoding != "" || !Compressible(contentType) {
		return nil
	}
	zipped, err := provider.Gzip(out.Buffer)
	if err != nil {
		return errors.Errorf("compressing: %w", err)
	}
	out.ContentSize = len(out.Buffer)
	out.Buffer = zipped
	out.ContentEncoding = "gzip"
	return nil
}

// Passthrough wraps an untransformed buffer.
func Passthrough(buf []byte) *Output {
	return &Output{Buffer: buf, ContentSize: len(buf)}
}

// sourceMap builds the artifact for a minifier's external source map.
func sourceMap(file *File, data []byte) *Artifact {
	return &Artifact{
		FilePath:     file.Path + ".map",
		RemoteName:   file.Remote + ".map",
		Buffer:       data,
		ContentType:  "application/json",
		CacheControl: Immutable,
		ContentSize:  len(data),
	}
}
