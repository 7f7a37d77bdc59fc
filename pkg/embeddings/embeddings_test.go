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

package embeddings

import (
	"context"
	"math"
	"testing"
)

func TestMock_EmbedIsDeterministicAndNormalized(t *testing.T) {
	m := NewMock(16)
	a, err := m.Embed(context.Background(), []string{"func Foo()", "func Bar()"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := m.Embed(context.Background(), []string{"func Foo()", "func Bar()"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != 2 || len(a[0]) != 16 {
		t.Fatalf("expected 2 vectors of dim 16, got %d vectors of dim %d", len(a), len(a[0]))
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("Embed should be deterministic for identical input")
			}
		}
	}

	var sumSq float64
	for _, x := range a[0] {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1) > 1e-3 {
		t.Fatalf("expected a unit vector, got squared norm %f", sumSq)
	}
}

func TestMock_DifferentTextsDifferentVectors(t *testing.T) {
	m := NewMock(8)
	out, _ := m.Embed(context.Background(), []string{"alpha", "beta"})
	if equalVectors(out[0], out[1]) {
		t.Fatalf("expected distinct texts to embed differently")
	}
}

func equalVectors(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew_DefaultsToMock(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "mock" {
		t.Fatalf("expected default provider to be mock, got %s", p.Name())
	}
}

func TestNew_UnknownProviderErrors(t *testing.T) {
	if _, err := New(Config{Type: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected an error for an unknown provider type")
	}
}
