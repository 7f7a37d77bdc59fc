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

package hashing

import "testing"

func TestSourceCodeHash_StableUnderRename(t *testing.T) {
	h1 := SourceCodeHash("function foo() { return 1; }", "foo", CStyle)
	h2 := SourceCodeHash("function bar() { return 1; }", "bar", CStyle)
	if h1 != h2 {
		t.Fatalf("renaming without body change should preserve hash: h1=%s h2=%s", h1, h2)
	}

	h3 := SourceCodeHash("function bar() { return 2; }", "bar", CStyle)
	if h3 == h1 {
		t.Fatalf("changing the body should change the hash")
	}
}

func TestSourceCodeHash_IgnoresCommentsAndWhitespace(t *testing.T) {
	a := SourceCodeHash("func Foo() {\n  // a comment\n  return\n}", "Foo", CStyle)
	b := SourceCodeHash("func Foo() {\n\treturn\n}\n", "Foo", CStyle)
	if a != b {
		t.Fatalf("comment-only and whitespace-only differences should hash the same: a=%s b=%s", a, b)
	}
}

func TestSourceCodeHash_BlockCommentsAndStrings(t *testing.T) {
	src := `func Foo() string {
		/* block comment
		   spanning lines */
		return "// not a comment"
	}`
	got := SourceCodeHash(src, "Foo", CStyle)
	want := SourceCodeHash("func Foo() string {\n\treturn \"// not a comment\"\n}", "Foo", CStyle)
	if got != want {
		t.Fatalf("block comment stripping mismatch: got=%s want=%s", got, want)
	}
}

func TestSourceCodeHash_HashStyleComments(t *testing.T) {
	a := SourceCodeHash("def foo():\n    # comment\n    return 1\n", "foo", HashStyle)
	b := SourceCodeHash("def foo():\n    return 1\n", "foo", HashStyle)
	if a != b {
		t.Fatalf("hash-style comment stripping mismatch: a=%s b=%s", a, b)
	}
}

func TestCommentStyleForLanguage(t *testing.T) {
	if CommentStyleForLanguage("python") != HashStyle {
		t.Fatalf("python should use hash-style comments")
	}
	if CommentStyleForLanguage("go") != CStyle {
		t.Fatalf("go should use c-style comments")
	}
	if CommentStyleForLanguage("") != CStyle {
		t.Fatalf("unknown language should default to c-style")
	}
}
