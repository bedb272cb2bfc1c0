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

// Package providertest holds in-memory and mock providers for tests.
package providertest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/jonboulle/clockwork"
	"gitlab.com/tozd/go/errors"
)

var _ provider.Provider = (*Memory)(nil)

type entry struct {
	obj  provider.Object
	data []byte
}

// 🧠 Memory is a Provider backed by a map.
type Memory struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	objects map[string]*entry

	Public  bool
	Inits   int
	Uploads []string
	Deletes []string

	// FailUpload, when set, is consulted before every upload.
	FailUpload func(name string) error
	// FailList, when set, is returned by List.
	FailList error
}

// NewMemory creates an empty in-memory provider. A nil clock uses the real one.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:   clock,
		objects: make(map[string]*entry),
	}
}

func (m *Memory) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inits++
	return nil
}

func (m *Memory) MakePublic(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Public = true
	return nil
}

func (m *Memory) MakePrivate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Public = false
	return nil
}

func (m *Memory) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	e, ok := m.objects[name]
	m.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("%w: %s", provider.ErrNotFound, name)
	}
	return provider.Decode(e.data)
}

func (m *Memory) List(ctx context.Context, prefix string) ([]provider.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailList != nil {
		return nil, m.FailList
	}
	var out []provider.Object
	for name, e := range m.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, e.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, name)
	if _, ok := m.objects[name]; !ok {
		return false, nil
	}
	delete(m.objects, name)
	return true, nil
}

func (m *Memory) Upload(ctx context.Context, buf []byte, name string, headers provider.Headers) (*provider.Object, error) {
	if m.FailUpload != nil {
		if err := m.FailUpload(name); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	created := now
	if prev, ok := m.objects[name]; ok {
		created = prev.obj.CreatedAt
	}
	sum := hash.ContentFingerprint(buf)
	obj := provider.Object{
		Name:            name,
		ContentType:     headers.ContentType,
		ContentEncoding: headers.ContentEncoding,
		CacheControl:    headers.CacheControl,
		ContentSize:     int64(len(buf)),
		OriginalSize:    int64(headers.ContentSize),
		CreatedAt:       created,
		UpdatedAt:       now,
		ContentHash:     sum,
		ETag:            sum,
	}
	m.objects[name] = &entry{obj: obj, data: append([]byte(nil), buf...)}
	m.Uploads = append(m.Uploads, name)
	return &obj, nil
}

func (m *Memory) URL() string {
	return "https://memory.test"
}

// Object returns the stored metadata and raw bytes for name.
func (m *Memory) Object(name string) (provider.Object, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.objects[name]
	if !ok {
		return provider.Object{}, nil, false
	}
	return e.obj, e.data, true
}

// Names returns every stored object name, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetCalls clears the recorded uploads and deletes.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = nil
	m.Deletes = nil
}
