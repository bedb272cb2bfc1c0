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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when no config file can be found and the
// emulator is not enabled.
var ErrConfigMissing = errors.Base("no hoist config found")

// 🎯 Defaults applied by Validate.
const (
	DefaultConcurrency = 12
	DefaultGracePeriod = 72 * time.Hour
	DefaultTimeout     = 520 * time.Second
	DefaultEndpoint    = "https://storage.googleapis.com"
	DefaultRegion      = "auto"
	DefaultLocation    = "us-west2"
)

// 📄 FileNames are searched for, in order, in each directory walking upward
// from the publish root.
var FileNames = []string{"hoist.yaml", "hoist.yml", "hoist.hcl", "hoist.json", "gcloud.json"}

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config represents the complete configuration
type Config struct {
	Bucket          string `json:"bucket,omitempty" yaml:"bucket,omitempty" hcl:"bucket,optional"`
	ProjectID       string `json:"project_id,omitempty" yaml:"project_id,omitempty" hcl:"project_id,optional"`
	Location        string `json:"location,omitempty" yaml:"location,omitempty" hcl:"location,optional"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" hcl:"endpoint,optional"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty" hcl:"region,optional"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" hcl:"access_key_id,optional"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" hcl:"secret_access_key,optional"`
	TestDomain      string `json:"test_domain,omitempty" yaml:"test_domain,omitempty" hcl:"test_domain,optional"`
	Concurrency     int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty" hcl:"concurrency,optional"`
	GracePeriod     string `json:"grace_period,omitempty" yaml:"grace_period,omitempty" hcl:"grace_period,optional"`
	Timeout         string `json:"timeout,omitempty" yaml:"timeout,omitempty" hcl:"timeout,optional"`

	// Emulate is the HOIST_EMULATE url; when set the local emulator backend is used.
	Emulate     string `json:"-" yaml:"-"`
	EmulatorDir string `json:"-" yaml:"-"`

	Grace     time.Duration `json:"-" yaml:"-"`
	OpTimeout time.Duration `json:"-" yaml:"-"`
	Source    string        `json:"-" yaml:"-"`
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.Source = path

	return cfg, nil
}

// 🔍 Find walks upward from dir looking for any of FileNames.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// 🔍 Validate checks if the configuration is valid and fills defaults
func (cfg *Config) Validate() error {
	if cfg.Bucket == "" && cfg.Emulate == "" {
		return errors.Errorf("bucket is required")
	}
	cfg.Bucket = strings.ToLower(strings.TrimSpace(cfg.Bucket))

	if cfg.Concurrency < 0 {
		return errors.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	cfg.Grace = DefaultGracePeriod
	if cfg.GracePeriod != "" {
		d, err := time.ParseDuration(cfg.GracePeriod)
		if err != nil {
			return errors.Errorf("parsing grace_period: %w", err)
		}
		cfg.Grace = d
	}

	cfg.OpTimeout = DefaultTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return errors.Errorf("parsing timeout: %w", err)
		}
		cfg.OpTimeout = d
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}

	return nil
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	if cfg.Emulate != "" {
		return fmt.Sprintf("%s (emulated at %s)", cfg.Bucket, cfg.Emulate)
	}
	return fmt.Sprintf("%s via %s", cfg.Bucket, cfg.Endpoint)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// WithBucket applies a command line bucket override. The emulator derives
// its own bucket name, so the override is ignored there.
func (cfg *Config) WithBucket(bucket string) {
	if bucket == "" || cfg.Emulate != "" {
		return
	}
	cfg.Bucket = strings.ToLower(strings.TrimSpace(bucket))
}
