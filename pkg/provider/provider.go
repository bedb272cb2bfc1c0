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

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/klauspost/compress/gzip"
	"gitlab.com/tozd/go/errors"
)

// ErrNotFound is returned by Get when the named object does not exist.
var ErrNotFound = errors.Base("object not found")

// 📄 Object describes one stored object
type Object struct {
	Name            string
	ContentType     string
	ContentEncoding string
	CacheControl    string
	ContentSize     int64
	OriginalSize    int64 // uncompressed size from Headers.ContentSize, 0 when unknown
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ContentHash     string // md5 of the stored bytes in fingerprint form, empty when unknown
	ETag            string
}

// 📨 Headers are applied to an uploaded object
type Headers struct {
	ContentType     string
	ContentEncoding string
	CacheControl    string
	ContentSize     int // original size before compression, sent as x-content-size
}

// 🔌 Provider is the interface for object store backends
type Provider interface {
	// 🏗️ Init provisions the container. It is idempotent.
	Init(ctx context.Context) error

	// 🔓 MakePublic allows anonymous reads
	MakePublic(ctx context.Context) error

	// 🔒 MakePrivate removes anonymous reads
	MakePrivate(ctx context.Context) error

	// 📄 Get returns the decoded bytes of name, or ErrNotFound
	Get(ctx context.Context, name string) ([]byte, error)

	// 📂 List returns every object whose name starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)

	// 🗑️ Delete removes name
	Delete(ctx context.Context, name string) (bool, error)

	// 📤 Upload stores buf under name
	Upload(ctx context.Context, buf []byte, name string, headers Headers) (*Object, error)

	// 🌎 URL is the public base url of the container
	URL() string
}

// 🏭 Factory creates a new provider
type Factory func(ctx context.Context, cfg *config.Config) (Provider, error)

var (
	// 🗺️ providers is a map of provider names to factories
	providers = make(map[string]Factory)
)

// 📝 Register registers a provider factory
func Register(name string, factory Factory) {
	providers[name] = factory
}

// 🎯 Get returns a provider factory by name
func Get(name string) Factory {
	return providers[name]
}

// Names lists registered providers.
func Names() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 🎯 Open constructs and initializes the backend selected by cfg: the
// emulator when cfg.Emulate is set, the bucket otherwise.
func Open(ctx context.Context, cfg *config.Config) (Provider, error) {
	name := "bucket"
	if cfg.Emulate != "" {
		name = "emulator"
	}

	factory := Get(name)
	if factory == nil {
		return nil, errors.Errorf("provider %q is not registered (have %v)", name, Names())
	}

	p, err := factory(ctx, cfg)
	if err != nil {
		return nil, errors.Errorf("creating %s provider: %w", name, err)
	}

	if err := p.Init(ctx); err != nil {
		return nil, errors.Errorf("initializing %s provider: %w", name, err)
	}

	return p, nil
}

// 📦 GetJSON fetches name and decodes it as JSON into T.
func GetJSON[T any](ctx context.Context, p Provider, name string) (T, error) {
	var out T
	data, err := p.Get(ctx, name)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Errorf("decoding %s: %w", name, err)
	}
	return out, nil
}

// Decode inflates gzip data and returns anything else unchanged. Backends
// may or may not decompress gzip-encoded objects on the way out.
func Decode(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Errorf("reading gzip stream: %w", err)
	}
	return out, nil
}

// Gzip compresses data at level 8.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, 8)
	if err != nil {
		return nil, errors.Errorf("creating gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Errorf("writing gzip stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Errorf("closing gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}
