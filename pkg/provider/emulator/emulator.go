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

// Package emulator is a local stand-in for the bucket. Objects live in a
// single bbolt file so names like "about" and "about/team" can coexist.
package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	dbFilePerm  = 0o600
	dbDirPerm   = 0o700
	openTimeout = 5 * time.Second
)

var (
	objectsBucket  = []byte("objects")
	blobsBucket    = []byte("blobs")
	settingsBucket = []byte("settings")
	publicKey      = []byte("public")
)

var _ provider.Provider = (*Emulator)(nil)

func init() {
	provider.Register("emulator", New)
}

// 🧪 Emulator stores objects in a bbolt database
type Emulator struct {
	db    *bolt.DB
	path  string
	url   string
	clock clockwork.Clock
}

// 🏭 New opens the emulator database for cfg.Bucket under cfg.EmulatorDir
// (a temp directory when unset).
func New(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	dir := cfg.EmulatorDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "hoist-emulator")
	}
	url := cfg.TestDomain
	if url == "" {
		url = cfg.Emulate
	}
	return Open(ctx, filepath.Join(dir, cfg.Bucket+".db"), url, clockwork.NewRealClock())
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path, url string, clock clockwork.Clock) (*Emulator, error) {
	if err := os.MkdirAll(filepath.Dir(path), dbDirPerm); err != nil {
		return nil, errors.Errorf("creating emulator directory: %w", err)
	}

	db, err := bolt.Open(path, dbFilePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Errorf("opening emulator db: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("opened emulator")
	return &Emulator{db: db, path: path, url: url, clock: clock}, nil
}

// Close closes the database.
func (e *Emulator) Close() error {
	return e.db.Close()
}

// Path is the database file location.
func (e *Emulator) Path() string {
	return e.path
}

func (e *Emulator) Init(ctx context.Context) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{objectsBucket, blobsBucket, settingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Errorf("initializing emulator db: %w", err)
	}
	return nil
}

func (e *Emulator) setPublic(public bool) error {
	val := []byte("0")
	if public {
		val = []byte("1")
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(publicKey, val)
	})
}

func (e *Emulator) MakePublic(ctx context.Context) error {
	if err := e.setPublic(true); err != nil {
		return errors.Errorf("making emulator public: %w", err)
	}
	return nil
}

func (e *Emulator) MakePrivate(ctx context.Context) error {
	if err := e.setPublic(false); err != nil {
		return errors.Errorf("making emulator private: %w", err)
	}
	return nil
}

// Public reports the readability flag set by MakePublic/MakePrivate.
func (e *Emulator) Public() bool {
	var public bool
	_ = e.db.View(func(tx *bolt.Tx) error {
		public = bytes.Equal(tx.Bucket(settingsBucket).Get(publicKey), []byte("1"))
		return nil
	})
	return public
}

func (e *Emulator) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobsBucket).Get([]byte(name))
		if v == nil {
			return errors.Errorf("%w: %s", provider.ErrNotFound, name)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return provider.Decode(data)
}

func (e *Emulator) List(ctx context.Context, prefix string) ([]provider.Object, error) {
	var out []provider.Object
	err := e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var obj provider.Object
			if err := json.Unmarshal(v, &obj); err != nil {
				return errors.Errorf("decoding metadata for %s: %w", k, err)
			}
			out = append(out, obj)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", prefix, err)
	}
	return out, nil
}

func (e *Emulator) Delete(ctx context.Context, name string) (bool, error) {
	var existed bool
	err := e.db.Update(func(tx *bolt.Tx) error {
		key := []byte(name)
		existed = tx.Bucket(objectsBucket).Get(key) != nil
		if err := tx.Bucket(objectsBucket).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(blobsBucket).Delete(key)
	})
	if err != nil {
		return false, errors.Errorf("deleting %s: %w", name, err)
	}
	return existed, nil
}

func (e *Emulator) Upload(ctx context.Context, buf []byte, name string, headers provider.Headers) (*provider.Object, error) {
	now := e.clock.Now().UTC()
	sum := hash.ContentFingerprint(buf)
	contentType := headers.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	obj := provider.Object{
		Name:            name,
		ContentType:     contentType,
		ContentEncoding: headers.ContentEncoding,
		CacheControl:    headers.CacheControl,
		ContentSize:     int64(len(buf)),
		OriginalSize:    int64(headers.ContentSize),
		CreatedAt:       now,
		UpdatedAt:       now,
		ContentHash:     sum,
		ETag:            sum,
	}

	err := e.db.Update(func(tx *bolt.Tx) error {
		key := []byte(name)
		meta := tx.Bucket(objectsBucket)
		if prev := meta.Get(key); prev != nil {
			var old provider.Object
			if err := json.Unmarshal(prev, &old); err == nil {
				obj.CreatedAt = old.CreatedAt
			}
		}
		encoded, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if err := meta.Put(key, encoded); err != nil {
			return err
		}
		return tx.Bucket(blobsBucket).Put(key, buf)
	})
	if err != nil {
		return nil, errors.Errorf("uploading %s: %w", name, err)
	}
	return &obj, nil
}

func (e *Emulator) URL() string {
	return e.url
}
