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
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"gitlab.com/tozd/go/errors"
)

// 📄 Markup minifies HTML pages and SVG images, including inline styles and
// scripts.
type Markup struct {
	m *minify.M
}

// NewMarkup creates the HTML/SVG minifier.
func NewMarkup() *Markup {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return &Markup{m: m}
}

func (t *Markup) Transform(ctx context.Context, file *File, emit EmitFunc) (*Output, error) {
	mediaType := "text/html"
	if file.ContentType == "image/svg+xml" {
		mediaType = file.ContentType
	}
	out, err := t.m.Bytes(mediaType, file.Buffer)
	if err != nil {
		return nil, errors.Errorf("minifying %s: %w", file.Path, err)
	}
	return &Output{Buffer: out, ContentSize: len(out)}, nil
}
