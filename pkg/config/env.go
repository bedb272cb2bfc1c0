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

package config

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gitlab.com/tozd/go/errors"
)

// 🌍 Env holds the environment overrides applied on top of a config file.
type Env struct {
	Emulate         string `env:"HOIST_EMULATE"`
	EmulatorDir     string `env:"HOIST_EMULATOR_DIR"`
	ProjectID       string `env:"PROJECT_ID"`
	Bucket          string `env:"HOIST_BUCKET"`
	Endpoint        string `env:"HOIST_ENDPOINT"`
	AccessKeyID     string `env:"HOIST_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"HOIST_SECRET_ACCESS_KEY"`
}

// LoadEnv reads a .env file in dir when present, then parses the process
// environment.
func LoadEnv(ctx context.Context, dir string) (*Env, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("loading .env")
		}
	}

	e := &Env{}
	if err := env.Parse(e); err != nil {
		return nil, errors.Errorf("parsing environment: %w", err)
	}
	return e, nil
}

// 🎯 Resolve produces the effective config for publishing root. With
// HOIST_EMULATE set no file is needed; otherwise a config file must be
// found by searching upward from root.
func Resolve(ctx context.Context, root string) (*Config, error) {
	e, err := LoadEnv(ctx, root)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	if e.Emulate != "" {
		cfg, err = emulated(e.Emulate)
		if err != nil {
			return nil, err
		}
	} else {
		path, ok := Find(root)
		if !ok {
			return nil, errors.Errorf("%w: searched upward from %s", ErrConfigMissing, root)
		}
		cfg, err = Load(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	e.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (e *Env) apply(cfg *Config) {
	if e.ProjectID != "" {
		cfg.ProjectID = e.ProjectID
	}
	if e.EmulatorDir != "" {
		cfg.EmulatorDir = e.EmulatorDir
	}
	if e.Emulate != "" {
		// the emulator owns its bucket name
		return
	}
	if e.Bucket != "" {
		cfg.Bucket = e.Bucket
	}
	if e.Endpoint != "" {
		cfg.Endpoint = e.Endpoint
	}
	if e.AccessKeyID != "" {
		cfg.AccessKeyID = e.AccessKeyID
	}
	if e.SecretAccessKey != "" {
		cfg.SecretAccessKey = e.SecretAccessKey
	}
}

// emulated derives a config from the HOIST_EMULATE url. The bucket is the
// host and port joined by a dash, e.g. https://hoist.test -> hoist.test-443.
func emulated(raw string) (*Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Errorf("parsing HOIST_EMULATE: %w", err)
	}
	if u.Hostname() == "" {
		return nil, errors.Errorf("HOIST_EMULATE %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return &Config{
		Bucket:     strings.ToLower(u.Hostname() + "-" + port),
		TestDomain: raw,
		Emulate:    raw,
	}, nil
}

func envFunctions() map[string]function.Function {
	return map[string]function.Function{
		"env": function.New(&function.Spec{
			Params: []function.Parameter{{Name: "name", Type: cty.String}},
			Type:   function.StaticReturnType(cty.String),
			Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
				return cty.StringVal(os.Getenv(args[0].AsString())), nil
			},
		}),
	}
}
