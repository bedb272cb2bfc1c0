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
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🎨 Esbuild minifies stylesheets or scripts and emits an external source
// map next to the minified object.
type Esbuild struct {
	loader api.Loader
	// comment formats the sourceMappingURL trailer
	comment string
}

// NewStylesheet minifies CSS.
func NewStylesheet() *Esbuild {
	return &Esbuild{loader: api.LoaderCSS, comment: "/*# sourceMappingURL=/%s.map */\n"}
}

// NewScript minifies JavaScript.
func NewScript() *Esbuild {
	return &Esbuild{loader: api.LoaderJS, comment: "//# sourceMappingURL=/%s.map\n"}
}

func (e *Esbuild) Transform(ctx context.Context, file *File, emit EmitFunc) (*Output, error) {
	result := api.Transform(string(file.Buffer), api.TransformOptions{
		Loader:            e.loader,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Sourcemap:         api.SourceMapExternal,
		Sourcefile:        file.Path,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		line := 0
		if msg.Location != nil {
			line = msg.Location.Line
		}
		return nil, errors.Errorf("minifying %s:%d: %s", file.Path, line, msg.Text)
	}
	for _, w := range result.Warnings {
		zerolog.Ctx(ctx).Debug().Str("file", file.Path).Msg(w.Text)
	}

	code := result.Code
	if len(result.Map) > 0 {
		if err := emit(ctx, sourceMap(file, result.Map)); err != nil {
			return nil, errors.Errorf("emitting source map: %w", err)
		}
		code = append(code, fmt.Sprintf(e.comment, file.Remote)...)
	}

	return &Output{Buffer: code, ContentSize: len(code)}, nil
}
