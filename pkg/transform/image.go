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

package transform

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// JPEGQuality is used when re-encoding JPEGs.
const JPEGQuality = 70

// 🖼️ Image recompresses JPEG and PNG files and emits a WebP derivative at
// {remote}.webp. GIFs are re-encoded frame by frame and get no derivative.
type Image struct {
	quality int
}

// NewImage creates the image transform.
func NewImage() *Image {
	return &Image{quality: JPEGQuality}
}

func (t *Image) Transform(ctx context.Context, file *File, emit EmitFunc) (*Output, error) {
	if strings.EqualFold(path.Ext(file.Path), ".gif") {
		return t.animation(file)
	}

	img, format, err := image.Decode(bytes.NewReader(file.Buffer))
	if err != nil {
		return nil, errors.Errorf("decoding %s: %w", file.Path, err)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	default:
		return nil, errors.Errorf("unsupported image format %q for %s", format, file.Path)
	}
	if err != nil {
		return nil, errors.Errorf("encoding %s: %w", file.Path, err)
	}

	primary := buf.Bytes()
	if len(primary) >= len(file.Buffer) {
		primary = file.Buffer
	}

	var webp bytes.Buffer
	if err := nativewebp.Encode(&webp, img, nil); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", file.Path).Msg("skipping webp derivative")
	} else {
		err := emit(ctx, &Artifact{
			FilePath:     file.Path + ".webp",
			RemoteName:   file.Remote + ".webp",
			Buffer:       webp.Bytes(),
			ContentType:  "image/webp",
			CacheControl: Immutable,
			ContentSize:  webp.Len(),
		})
		if err != nil {
			return nil, errors.Errorf("emitting webp: %w", err)
		}
	}

	return &Output{Buffer: primary, ContentSize: len(primary)}, nil
}

// animation re-encodes every frame of a GIF, keeping timing and loop count.
func (t *Image) animation(file *File) (*Output, error) {
	anim, err := gif.DecodeAll(bytes.NewReader(file.Buffer))
	if err != nil {
		return nil, errors.Errorf("decoding %s: %w", file.Path, err)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, errors.Errorf("encoding %s: %w", file.Path, err)
	}

	out := buf.Bytes()
	if len(out) >= len(file.Buffer) {
		out = file.Buffer
	}
	return &Output{Buffer: out, ContentSize: len(out)}, nil
}
