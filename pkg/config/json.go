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
	"encoding/json"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&GCloudParser{})
	Register(&JSONParser{})
}

// 🔧 JSONParser implements the Parser interface for hoist.json files
type JSONParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *JSONParser) CanParse(filename string) bool {
	name := strings.ToLower(strings.TrimSpace(filename))
	return strings.HasSuffix(name, ".json") && filepath.Base(name) != "gcloud.json"
}

// 📝 Parse parses the config from JSON bytes
func (p *JSONParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

// 🔧 GCloudParser reads a gcloud.json service account key that carries hoist
// fields (bucket, test_domain, HMAC keys) alongside the account fields.
// Unknown fields are expected there, so the decode is lenient.
type GCloudParser struct{}

func (p *GCloudParser) CanParse(filename string) bool {
	return strings.EqualFold(filepath.Base(strings.TrimSpace(filename)), "gcloud.json")
}

func (p *GCloudParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("parsing gcloud.json: %w", err)
	}

	// older keys spell these in camel case
	var alt struct {
		ProjectID  string `json:"projectId"`
		TestDomain string `json:"testDomain"`
	}
	if err := json.Unmarshal(data, &alt); err == nil {
		if cfg.ProjectID == "" {
			cfg.ProjectID = alt.ProjectID
		}
		if cfg.TestDomain == "" {
			cfg.TestDomain = alt.TestDomain
		}
	}
	return &cfg, nil
}
