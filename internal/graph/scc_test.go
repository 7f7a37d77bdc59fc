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
	"sort"
	"testing"
)

func sortedComponents(comps [][]int64) [][]int64 {
	out := make([][]int64, len(comps))
	for i, c := range comps {
		cc := append([]int64(nil), c...)
		sort.Slice(cc, func(i, j int) bool { return cc[i] < cc[j] })
		out[i] = cc
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestSCCs_SingletonsForAcyclicGraph(t *testing.T) {
	g := New([]int64{1, 2, 3}, []Edge{{From: 1, To: 2}, {From: 2, To: 3}})
	comps := SCCs(g)
	if len(comps) != 3 {
		t.Fatalf("expected 3 singleton components, got %d: %v", len(comps), comps)
	}
}

func TestSCCs_TwoNodeCycle(t *testing.T) {
	g := New([]int64{1, 2}, []Edge{{From: 1, To: 2}, {From: 2, To: 1}})
	comps := sortedComponents(SCCs(g))
	want := [][]int64{{1, 2}}
	if len(comps) != 1 || comps[0][0] != 1 || comps[0][1] != 2 {
		t.Fatalf("SCCs() = %v, want %v", comps, want)
	}
}

func TestSCCs_ThreeNodeCyclePlusIsolatedNode(t *testing.T) {
	g := New(
		[]int64{1, 2, 3, 4},
		[]Edge{{From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 1}},
	)
	comps := sortedComponents(SCCs(g))
	if len(comps) != 2 {
		t.Fatalf("expected 2 components (one triangle, one singleton), got %d: %v", len(comps), comps)
	}
	if len(comps[0]) != 3 {
		t.Fatalf("expected the triangle component first, got %v", comps)
	}
	if len(comps[1]) != 1 || comps[1][0] != 4 {
		t.Fatalf("expected the isolated node as its own component, got %v", comps[1])
	}
}

func TestSCCs_DeepChainDoesNotOverflowStack(t *testing.T) {
	const n = 50000
	nodes := make([]int64, n)
	edges := make([]Edge, 0, n-1)
	for i := 0; i < n; i++ {
		nodes[i] = int64(i)
		if i > 0 {
			edges = append(edges, Edge{From: int64(i - 1), To: int64(i)})
		}
	}
	g := New(nodes, edges)
	comps := SCCs(g)
	if len(comps) != n {
		t.Fatalf("expected %d singleton components for a long acyclic chain, got %d", n, len(comps))
	}
}
