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

// Package text rewrites references between published files once assets have
// been renamed. Matching is literal; no CSS or HTML parsing happens here.
package text

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ReplacementRule maps one literal reference to its replacement
type ReplacementRule struct {
	FromText string
	ToText   string
}

// ReplacementResult contains the results of a rewrite
type ReplacementResult struct {
	// WasModified indicates if any replacements were made
	WasModified bool

	// ReplacementCount is the number of replacements made
	ReplacementCount int

	// OriginalContent is the content before replacements
	OriginalContent []byte

	// ModifiedContent is the content after replacements
	ModifiedContent []byte
}

// 🔁 Rewriter replaces references to renamed files. The rules for a given
// referencing directory are built once and reused by every file in it.
type Rewriter struct {
	table map[string]string
	order []string

	mu    sync.Mutex
	cache map[string]*replacer
}

// 🏭 NewRewriter creates a Rewriter over a local path -> remote name table.
// The table must not change afterwards.
func NewRewriter(table map[string]string) *Rewriter {
	order := make([]string, 0, len(table))
	for old := range table {
		order = append(order, old)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})
	return &Rewriter{
		table: table,
		order: order,
		cache: make(map[string]*replacer),
	}
}

// Rules returns the replacement rules for files in dir, longest first.
func (r *Rewriter) Rules(dir string) []ReplacementRule {
	dir = cleanDir(dir)
	seen := make(map[string]bool)
	var rules []ReplacementRule
	add := func(from, to string) {
		if from == "" || seen[from] {
			return
		}
		seen[from] = true
		rules = append(rules, ReplacementRule{FromText: from, ToText: to})
	}

	for _, old := range r.order {
		target := "/" + r.table[old]
		rel := relative(dir, old)
		add("/"+old, target)
		add("("+old+")", "("+target+")")
		add("./"+rel, target)
		add(rel, target)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].FromText) > len(rules[j].FromText)
	})
	return rules
}

// ✍️ ReplaceText rewrites content belonging to the file at filePath.
func (r *Rewriter) ReplaceText(ctx context.Context, filePath string, content []byte) *ReplacementResult {
	rep := r.replacerFor(path.Dir(filePath))
	out, count := rep.replace(content)

	if count > 0 {
		zerolog.Ctx(ctx).Debug().Str("file", filePath).Int("replacements", count).Msg("rewrote references")
	}
	return &ReplacementResult{
		WasModified:      count > 0,
		ReplacementCount: count,
		OriginalContent:  content,
		ModifiedContent:  out,
	}
}

func (r *Rewriter) replacerFor(dir string) *replacer {
	dir = cleanDir(dir)

	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.cache[dir]; ok {
		return rep
	}
	rep := newReplacer(r.Rules(dir))
	r.cache[dir] = rep
	return rep
}

// replacer does a single leftmost pass; at each position the longest
// matching rule wins and replaced text is never scanned again.
type replacer struct {
	byFirst map[byte][]pattern
}

type pattern struct {
	from []byte
	to   string
}

func newReplacer(rules []ReplacementRule) *replacer {
	rep := &replacer{byFirst: make(map[byte][]pattern)}
	for _, rule := range rules {
		b := rule.FromText[0]
		rep.byFirst[b] = append(rep.byFirst[b], pattern{from: []byte(rule.FromText), to: rule.ToText})
	}
	return rep
}

func (rep *replacer) replace(content []byte) ([]byte, int) {
	if len(rep.byFirst) == 0 {
		return content, 0
	}

	var out bytes.Buffer
	count, last := 0, 0
	for i := 0; i < len(content); {
		matched := false
		for _, p := range rep.byFirst[content[i]] {
			if bytes.HasPrefix(content[i:], p.from) {
				if count == 0 {
					out.Grow(len(content))
				}
				out.Write(content[last:i])
				out.WriteString(p.to)
				i += len(p.from)
				last = i
				count++
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	if count == 0 {
		return content, 0
	}
	out.Write(content[last:])
	return out.Bytes(), count
}

func cleanDir(dir string) string {
	return path.Clean("/" + dir)[1:]
}

// relative returns target as seen from dir, both relative to the root.
func relative(dir, target string) string {
	if dir == "" {
		return target
	}
	if strings.HasPrefix(target, dir+"/") {
		return strings.TrimPrefix(target, dir+"/")
	}

	from := strings.Split(dir, "/")
	to := strings.Split(target, "/")
	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}
	return strings.Repeat("../", len(from)-common) + strings.Join(to[common:], "/")
}
