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

package hash

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"os"

	"gitlab.com/tozd/go/errors"
)

// ErrFileNotFound is returned when fingerprinting a path that does not exist.
var ErrFileNotFound = errors.Base("file not found")

// 🔑 ContentFingerprint returns the md5 digest of buf in unpadded base64url form.
func ContentFingerprint(buf []byte) string {
	sum := md5.Sum(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// 🔑 CacheKey combines a remote name with a content fingerprint. Two keys are
// equal only when both the name and the content are equal.
func CacheKey(remoteName, fingerprint string) string {
	return ContentFingerprint([]byte(remoteName + fingerprint))
}

// CacheKeyOf is CacheKey over the fingerprint of buf.
func CacheKeyOf(remoteName string, buf []byte) string {
	return CacheKey(remoteName, ContentFingerprint(buf))
}

// 📄 FileFingerprint reads path and fingerprints its bytes.
func FileFingerprint(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", errors.Errorf("reading %s: %w", path, err)
	}
	return ContentFingerprint(buf), nil
}

// FromMD5Base64 converts a standard base64 md5 digest (as reported by GCS)
// into the fingerprint alphabet.
func FromMD5Base64(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.Errorf("decoding md5 %q: %w", s, err)
	}
	if len(raw) != md5.Size {
		return "", errors.Errorf("md5 %q has %d bytes", s, len(raw))
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// FromMD5Hex converts a hex md5 digest (an S3 single-part ETag, quotes
// allowed) into the fingerprint alphabet.
func FromMD5Hex(s string) (string, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.Errorf("decoding md5 %q: %w", s, err)
	}
	if len(raw) != md5.Size {
		return "", errors.Errorf("md5 %q has %d bytes", s, len(raw))
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
