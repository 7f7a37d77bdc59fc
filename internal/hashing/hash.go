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

// Package hashing computes the content hash used to detect whether a
// definition's body changed across commits, independent of its name.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// CommentStyle selects the comment-stripping rules applied before hashing.
type CommentStyle int

const (
	// CStyle strips "//" line comments and "/* */" block comments.
	// Covers Go, TypeScript/JavaScript, Protobuf, Java, C-family languages.
	CStyle CommentStyle = iota
	// HashStyle strips "#" line comments. Covers Python, shell, Ruby.
	HashStyle
)

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// SourceCodeHash computes the hash used for DefinitionHash comparisons.
//
// It strips comments for the given style, removes tokens equal to name
// (so renaming a symbol without touching its body does not change the
// hash), normalizes line endings and whitespace, and returns the hex
// SHA-256 digest of the result.
func SourceCodeHash(source, name string, style CommentStyle) string {
	stripped := stripComments(source, style)
	stripped = removeNameTokens(stripped, name)
	normalized := normalizeWhitespace(stripped)

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// stripComments removes comments according to style. It is a textual
// pass, not a full tokenizer, but is string-literal aware so that "//"
// or "#" inside a quoted string is not mistaken for a comment start.
func stripComments(source string, style CommentStyle) string {
	var out strings.Builder
	inString := false
	var quote byte
	inBlockComment := false
	runes := []byte(source)

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inBlockComment {
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}

		if inString {
			out.WriteByte(c)
			if c == '\\' && i+1 < len(runes) {
				out.WriteByte(runes[i+1])
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			inString = true
			quote = c
			out.WriteByte(c)
		case style == CStyle && c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i--
		case style == CStyle && c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			inBlockComment = true
			i++
		case style == HashStyle && c == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i--
		default:
			out.WriteByte(c)
		}
	}

	return out.String()
}

// removeNameTokens deletes every whole-word occurrence of name so that
// renaming a definition does not perturb its hash.
func removeNameTokens(source, name string) string {
	if name == "" {
		return source
	}
	return identifierPattern.ReplaceAllStringFunc(source, func(tok string) string {
		if tok == name {
			return ""
		}
		return tok
	})
}

// normalizeWhitespace trims each line, drops empty lines, and converts
// CRLF/CR to LF before hashing.
func normalizeWhitespace(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")

	lines := strings.Split(source, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// FileHash hashes a file's raw bytes for the parse delta's unchanged-file
// fast path: unlike SourceCodeHash, it strips nothing, since a file-level
// skip only needs to detect "these bytes are identical to last run", not
// "this body is semantically identical under a rename".
func FileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CommentStyleForLanguage maps a detected language identifier to its
// comment-stripping rules. Unknown languages default to CStyle since
// most supported grammars are C-family.
func CommentStyleForLanguage(language string) CommentStyle {
	switch strings.ToLower(language) {
	case "python", "shell", "bash", "ruby", "yaml", "toml":
		return HashStyle
	default:
		return CStyle
	}
}
