// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

// Package parser extracts Definitions and imports from a source file
// using Tree-sitter grammars and queries. A definition is anything a
// query captures as def_<kind>; the parser contracts on capture names
// alone, not on any grammar's particular AST shape, so adding a
// language is adding a query file, not a new AST walker.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/atlasgraph/atlas/internal/hashing"
	"github.com/atlasgraph/atlas/internal/model"
)

// RawDefinition is one def_<kind> capture, before dedup/hashing.
type RawDefinition struct {
	Kind            model.DefinitionKind
	Name            string
	StartLine       int // 1-based
	EndLine         int
	StartByte       uint32
	EndByte         uint32
	SourceCode      string
	Docstring       *string
	IsExported      bool
	IsDefaultExport bool
}

// Import is one file-level import statement.
type Import struct {
	Path string
	Line int
}

// FileResult is everything extracted from one file.
type FileResult struct {
	Language    string
	Definitions []RawDefinition
	Imports     []Import
}

// Language groups a grammar, its query, and the kind each capture
// name maps to.
type Language struct {
	name     string
	language *sitter.Language
	query    string
	pool     sync.Pool
	once     sync.Once
}

func newLanguage(name string, lang *sitter.Language, query string) *Language {
	return &Language{name: name, language: lang, query: query}
}

func (l *Language) init() {
	l.once.Do(func() {
		l.pool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(l.language)
			return p
		}
	})
}

// Registry dispatches a file to the Language matching its extension.
type Registry struct {
	byExt map[string]*Language
}

// NewRegistry builds the registry covering Go, Python, JavaScript, and
// TypeScript, the grammars already vendored for the ingestion pipeline.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]*Language)}

	goLang := newLanguage("go", golang.GetLanguage(), goQuery)
	pyLang := newLanguage("python", python.GetLanguage(), pythonQuery)
	jsLang := newLanguage("javascript", javascript.GetLanguage(), javascriptQuery)
	tsLang := newLanguage("typescript", typescript.GetLanguage(), typescriptQuery)

	r.byExt[".go"] = goLang
	r.byExt[".py"] = pyLang
	r.byExt[".js"] = jsLang
	r.byExt[".jsx"] = jsLang
	r.byExt[".mjs"] = jsLang
	r.byExt[".ts"] = tsLang
	r.byExt[".tsx"] = tsLang
	return r
}

// Supports reports whether ext (including the leading dot) has a
// registered grammar.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[ext]
	return ok
}

// Extensions returns every registered extension, for exclude-glob and
// discovery logic upstream.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse extracts definitions and imports from source, dispatching on
// ext. The returned definitions are deduplicated per "a start line
// emits at most one definition, preferring the first non-anonymous,
// non-variable one and suppressing spans fully contained in an
// already-emitted definition".
func (r *Registry) Parse(ctx context.Context, ext string, source []byte) (*FileResult, error) {
	lang, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("parser: unsupported extension %q", ext)
	}
	lang.init()

	p := lang.pool.Get().(*sitter.Parser)
	defer lang.pool.Put(p)

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", lang.name, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(lang.query), lang.language)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: compile query: %w", lang.name, err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())

	defs, imports := extractCaptures(q, cursor, source)
	defs = dedupeDefinitions(defs)

	return &FileResult{Language: lang.name, Definitions: defs, Imports: imports}, nil
}

func extractCaptures(q *sitter.Query, cursor *sitter.QueryCursor, source []byte) ([]RawDefinition, []Import) {
	var defs []RawDefinition
	var imports []Import

	// Docstrings are emitted as a separate `doc` capture attached to the
	// same match as the definition; a match groups everything a single
	// query pattern bound together.
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var kind model.DefinitionKind
		var nameNode, defNode, docNode *sitter.Node
		isImport := false
		isExport := false

		for _, c := range match.Captures {
			capName := q.CaptureNameForId(c.Index)
			node := c.Node

			switch {
			case capName == "doc":
				docNode = node
			case capName == "import":
				isImport = true
				defNode = node
			case capName == "export":
				isExport = true
			case strings.HasPrefix(capName, "name_"):
				nameNode = node
			case capName == "name":
				if nameNode == nil {
					nameNode = node
				}
			case strings.HasPrefix(capName, "def_"):
				kind = model.DefinitionKind(strings.TrimPrefix(capName, "def_"))
				defNode = node
			}
		}

		if isImport {
			if defNode != nil {
				imports = append(imports, Import{
					Path: strings.Trim(defNode.Content(source), `"'`+"`"),
					Line: int(defNode.StartPoint().Row) + 1,
				})
			}
			continue
		}

		if defNode == nil || kind == "" {
			continue
		}

		name := "anonymous"
		if nameNode != nil {
			name = nameNode.Content(source)
		}

		var doc *string
		if docNode != nil {
			d := docNode.Content(source)
			doc = &d
		}

		defs = append(defs, RawDefinition{
			Kind:            kind,
			Name:            name,
			StartLine:       int(defNode.StartPoint().Row) + 1,
			EndLine:         int(defNode.EndPoint().Row) + 1,
			StartByte:       defNode.StartByte(),
			EndByte:         defNode.EndByte(),
			SourceCode:      defNode.Content(source),
			Docstring:       doc,
			IsExported:      isExport || isLikelyExported(name),
			IsDefaultExport: false,
		})
	}

	return defs, imports
}

// isLikelyExported falls back to name-based export detection for
// languages (Go) whose grammar has no dedicated export keyword.
func isLikelyExported(name string) bool {
	if name == "" || name == "anonymous" {
		return false
	}
	r := name[0]
	return r >= 'A' && r <= 'Z'
}

// dedupeDefinitions keeps at most one definition per start line,
// preferring a named, non-variable definition, and drops any
// definition whose byte span is fully contained in another one
// already kept (nested closures reported as part of their enclosing
// function).
func dedupeDefinitions(defs []RawDefinition) []RawDefinition {
	byLine := make(map[int]int, len(defs)) // start line -> index into kept
	var kept []RawDefinition

	for _, d := range defs {
		if idx, ok := byLine[d.StartLine]; ok {
			if preferOver(d, kept[idx]) {
				kept[idx] = d
			}
			continue
		}
		byLine[d.StartLine] = len(kept)
		kept = append(kept, d)
	}

	var result []RawDefinition
	for i, d := range kept {
		contained := false
		for j, other := range kept {
			if i == j {
				continue
			}
			if d.StartByte >= other.StartByte && d.EndByte <= other.EndByte &&
				!(d.StartByte == other.StartByte && d.EndByte == other.EndByte) {
				contained = true
				break
			}
		}
		if !contained {
			result = append(result, d)
		}
	}
	return result
}

func preferOver(candidate, incumbent RawDefinition) bool {
	candidateAnon := candidate.Name == "anonymous" || candidate.Kind == model.KindVariable
	incumbentAnon := incumbent.Name == "anonymous" || incumbent.Kind == model.KindVariable
	if incumbentAnon != candidateAnon {
		return incumbentAnon && !candidateAnon
	}
	// Same definition matched twice (once with its doc comment/docstring
	// captured, once without): prefer the richer capture.
	return candidate.Docstring != nil && incumbent.Docstring == nil
}

// SourceCodeHash computes the definition's content hash using the
// comment style appropriate for language.
func SourceCodeHash(def RawDefinition, language string) string {
	return hashing.SourceCodeHash(def.SourceCode, def.Name, hashing.CommentStyleForLanguage(language))
}
