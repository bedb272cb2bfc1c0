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

package bucket

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type fakeObject struct {
	body    []byte
	headers http.Header
}

// fakeS3 answers the handful of path-style S3 calls the bucket uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	exists  bool
	objects map[string]fakeObject
	calls   []string
}

func newFakeS3(bucket string, exists bool) *fakeS3 {
	return &fakeS3{bucket: bucket, exists: exists, objects: map[string]fakeObject{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	call := r.Method
	for _, sub := range []string{"cors", "website", "policy", "acl"} {
		if q.Has(sub) {
			call += " ?" + sub
		}
	}
	if key != "" {
		call += " " + key
	}
	f.calls = append(f.calls, call)

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut && len(q) == 0:
		f.exists = true
		w.WriteHeader(http.StatusOK)
	case key == "" && (q.Has("cors") || q.Has("website") || q.Has("policy") || q.Has("acl")):
		w.WriteHeader(http.StatusNoContent)
	case key == "" && r.Method == http.MethodGet && q.Get("list-type") == "2":
		f.list(w, q.Get("prefix"))
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = fakeObject{body: body, headers: r.Header.Clone()}
		sum := md5.Sum(body)
		w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		w.WriteHeader(http.StatusOK)
		w.Write(obj.body)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", f.bucket, prefix, len(keys))
	for _, k := range keys {
		sum := md5.Sum(f.objects[k].body)
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>&quot;%s&quot;</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>",
			k, hex.EncodeToString(sum[:]), len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, b.String())
}

func (f *fakeS3) object(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

func (f *fakeS3) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestBucket(t *testing.T, fake *fakeS3) (context.Context, provider.Provider) {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	cfg := &config.Config{
		Bucket:          fake.bucket,
		Endpoint:        srv.URL,
		Region:          "auto",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
	require.NoError(t, cfg.Validate())

	b, err := New(ctx, cfg)
	require.NoError(t, err)
	return ctx, b
}

func TestInit(t *testing.T) {
	t.Run("creates_missing_bucket", func(t *testing.T) {
		fake := newFakeS3("example.com", false)
		ctx, b := newTestBucket(t, fake)

		require.NoError(t, b.Init(ctx))
		assert.Equal(t, []string{"HEAD", "PUT", "PUT ?cors", "PUT ?website"}, fake.callLog())
	})

	t.Run("existing_bucket", func(t *testing.T) {
		fake := newFakeS3("example.com", true)
		ctx, b := newTestBucket(t, fake)

		require.NoError(t, b.Init(ctx))
		assert.Equal(t, []string{"HEAD", "PUT ?cors", "PUT ?website"}, fake.callLog())
	})
}

func TestObjectRoundTrip(t *testing.T) {
	fake := newFakeS3("example.com", true)
	ctx, b := newTestBucket(t, fake)

	zipped, err := provider.Gzip([]byte(`["k1","k2"]`))
	require.NoError(t, err)

	obj, err := b.Upload(ctx, zipped, "blog/.hoist-cache", provider.Headers{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		CacheControl:    "no-cache,no-store,max-age=0",
		ContentSize:     11,
	})
	require.NoError(t, err)
	assert.Equal(t, hash.ContentFingerprint(zipped), obj.ContentHash, "etag should convert to the content fingerprint")

	stored, ok := fake.object("blog/.hoist-cache")
	require.True(t, ok)
	assert.Equal(t, "gzip", stored.headers.Get("Content-Encoding"))
	assert.Equal(t, "no-cache,no-store,max-age=0", stored.headers.Get("Cache-Control"))
	assert.Equal(t, "11", stored.headers.Get("X-Amz-Meta-X-Content-Size"))

	got, err := provider.GetJSON[[]string](ctx, b, "blog/.hoist-cache")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, got)

	_, err = b.Get(ctx, "blog/.hoist-delete")
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrNotFound), "missing key should map to ErrNotFound, got %v", err)

	_, err = b.Upload(ctx, []byte("body{}"), "blog/css/Qm9v", provider.Headers{ContentType: "text/css"})
	require.NoError(t, err)
	_, err = b.Upload(ctx, []byte("other"), "about", provider.Headers{})
	require.NoError(t, err)

	listed, err := b.List(ctx, "blog/")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "blog/.hoist-cache", listed[0].Name)
	assert.Equal(t, "blog/css/Qm9v", listed[1].Name)
	assert.Equal(t, hash.ContentFingerprint([]byte("body{}")), listed[1].ContentHash)
	assert.EqualValues(t, 6, listed[1].ContentSize)

	deleted, err := b.Delete(ctx, "blog/css/Qm9v")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, stillThere := fake.object("blog/css/Qm9v")
	assert.False(t, stillThere)

	assert.Equal(t, "https://example.com", b.URL())
}

func TestPublicPrivate(t *testing.T) {
	fake := newFakeS3("example.com", true)
	ctx, b := newTestBucket(t, fake)

	require.NoError(t, b.MakePublic(ctx))
	require.NoError(t, b.MakePrivate(ctx))
	assert.Equal(t, []string{"PUT ?policy", "DELETE ?policy", "PUT ?acl"}, fake.callLog())
}

func TestEtagHash(t *testing.T) {
	sum := md5.Sum([]byte("x"))
	hexSum := hex.EncodeToString(sum[:])

	assert.Equal(t, hash.ContentFingerprint([]byte("x")), etagHash(`"`+hexSum+`"`))
	assert.Equal(t, "", etagHash(`"`+hexSum+`-2"`), "multipart etags carry no content md5")
	assert.Equal(t, "", etagHash(""))
	assert.Equal(t, "", etagHash("garbage"))
}
