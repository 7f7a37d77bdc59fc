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

package graph

import (
	"reflect"
	"testing"
)

// Same base.x/mid.x/top.x shape as levels_test.go: S references A, T
// references B, M references S and T. Changing A should pull in S and
// M (everything that transitively references A) but not B or T.
func TestAncestors_TransitiveReferencers(t *testing.T) {
	g := New(
		[]int64{nodeA, nodeB, nodeS, nodeT, nodeM},
		[]Edge{
			{From: nodeS, To: nodeA},
			{From: nodeT, To: nodeB},
			{From: nodeM, To: nodeS},
			{From: nodeM, To: nodeT},
		},
	)

	got := Ancestors(g, []int64{nodeA})
	want := []int64{nodeA, nodeS, nodeM}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ancestors(A) = %v, want %v", got, want)
	}
}

func TestAncestors_SeedWithNoReferencersIsJustItself(t *testing.T) {
	g := New([]int64{1, 2}, []Edge{{From: 2, To: 1}})
	got := Ancestors(g, []int64{2})
	want := []int64{2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ancestors(leaf-of-nobody) = %v, want %v", got, want)
	}
}

func TestAncestors_UnknownSeedIgnored(t *testing.T) {
	g := New([]int64{1}, nil)
	got := Ancestors(g, []int64{99})
	if len(got) != 0 {
		t.Fatalf("expected no ancestors for a seed outside the graph, got %v", got)
	}
}

func TestSubgraph_KeepsOnlyInternalEdges(t *testing.T) {
	g := New(
		[]int64{1, 2, 3},
		[]Edge{{From: 2, To: 1}, {From: 3, To: 2}},
	)
	sub := Subgraph(g, []int64{1, 2})
	if got := sub.Successors(2); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("Successors(2) = %v, want [1]", got)
	}
	if got := sub.Successors(3); len(got) != 0 {
		t.Fatalf("node 3 should not appear in the restricted subgraph, got successors %v", got)
	}
}
