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

package providertest

import (
	"context"

	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/stretchr/testify/mock"
)

var _ provider.Provider = (*MockProvider)(nil)

// 🎭 MockProvider is a testify mock of provider.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) MakePublic(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) MakePrivate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) Get(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) List(ctx context.Context, prefix string) ([]provider.Object, error) {
	args := m.Called(ctx, prefix)
	if objs := args.Get(0); objs != nil {
		return objs.([]provider.Object), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) Delete(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockProvider) Upload(ctx context.Context, buf []byte, name string, headers provider.Headers) (*provider.Object, error) {
	args := m.Called(ctx, buf, name, headers)
	if obj := args.Get(0); obj != nil {
		return obj.(*provider.Object), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) URL() string {
	args := m.Called()
	return args.String(0)
}
