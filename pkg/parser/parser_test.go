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

package parser

import (
	"context"
	"testing"

	"github.com/atlasgraph/atlas/internal/model"
)

func TestParse_Go_ExtractsFunctionsAndImports(t *testing.T) {
	src := []byte(`package main

import "fmt"

func Add(a, b int) int {
	return a + b
}

type point struct {
	X, Y int
}
`)
	r := NewRegistry()
	res, err := r.Parse(context.Background(), ".go", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var foundAdd, foundPoint bool
	for _, d := range res.Definitions {
		if d.Name == "Add" && d.Kind == model.KindFunction {
			foundAdd = true
			if !d.IsExported {
				t.Errorf("Add should be detected as exported")
			}
		}
		if d.Name == "point" && d.Kind == model.KindClass {
			foundPoint = true
		}
	}
	if !foundAdd {
		t.Fatalf("expected to find function Add, got %+v", res.Definitions)
	}
	if !foundPoint {
		t.Fatalf("expected to find struct point, got %+v", res.Definitions)
	}
	if len(res.Imports) != 1 || res.Imports[0].Path != "fmt" {
		t.Fatalf("expected a single fmt import, got %+v", res.Imports)
	}
}

func TestParse_Python_CapturesDocstring(t *testing.T) {
	src := []byte(`def greet(name):
    """Say hello."""
    return "hi " + name
`)
	r := NewRegistry()
	res, err := r.Parse(context.Background(), ".py", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Definitions) != 1 {
		t.Fatalf("expected one definition, got %d: %+v", len(res.Definitions), res.Definitions)
	}
	d := res.Definitions[0]
	if d.Docstring == nil {
		t.Fatalf("expected greet's docstring to be captured")
	}
}

func TestDedupeDefinitions_DropsContainedSpan(t *testing.T) {
	defs := []RawDefinition{
		{Name: "outer", Kind: model.KindFunction, StartLine: 1, StartByte: 0, EndByte: 100},
		{Name: "anonymous", Kind: model.KindVariable, StartLine: 3, StartByte: 10, EndByte: 40},
	}
	out := dedupeDefinitions(defs)
	if len(out) != 1 || out[0].Name != "outer" {
		t.Fatalf("expected the nested anonymous definition to be dropped, got %+v", out)
	}
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry()
	for _, ext := range []string{".go", ".py", ".js", ".ts", ".tsx"} {
		if !r.Supports(ext) {
			t.Errorf("expected %s to be supported", ext)
		}
	}
	if r.Supports(".rb") {
		t.Errorf("did not expect .rb to be supported")
	}
}
