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

import "testing"

func TestCondensation_CollapsesCycleToOneNode(t *testing.T) {
	g := New([]int64{1, 2, 3}, []Edge{
		{From: 1, To: 2}, {From: 2, To: 1}, // cycle
		{From: 2, To: 3},
	})
	comps := SCCs(g)
	dag, members := Condensation(g, comps)

	if len(dag.Nodes) != 2 {
		t.Fatalf("expected the condensation to have 2 nodes (cycle + node 3), got %d", len(dag.Nodes))
	}
	total := 0
	for _, m := range members {
		total += len(m)
	}
	if total != 3 {
		t.Fatalf("condensation members should account for every original node, got %d", total)
	}
}

func TestCondensation_NoSelfEdgesFromCollapsedCycle(t *testing.T) {
	g := New([]int64{1, 2}, []Edge{{From: 1, To: 2}, {From: 2, To: 1}})
	comps := SCCs(g)
	dag, _ := Condensation(g, comps)
	for _, n := range dag.Nodes {
		for _, s := range dag.Successors(n) {
			if s == n {
				t.Fatalf("condensation must not contain self-edges, found one at %d", n)
			}
		}
	}
}

func TestTransitiveReduction_RemovesImpliedEdge(t *testing.T) {
	// 1 -> 2 -> 3, plus a redundant direct 1 -> 3.
	g := New([]int64{1, 2, 3}, []Edge{
		{From: 1, To: 2},
		{From: 2, To: 3},
		{From: 1, To: 3},
	})
	reduced := TransitiveReduction(g)

	succ1 := reduced.Successors(1)
	if len(succ1) != 1 || succ1[0] != 2 {
		t.Fatalf("expected node 1's only surviving edge to be to 2, got %v", succ1)
	}
	succ2 := reduced.Successors(2)
	if len(succ2) != 1 || succ2[0] != 3 {
		t.Fatalf("expected node 2's edge to 3 to survive, got %v", succ2)
	}
}

func TestTransitiveReduction_NoRedundancyLeavesGraphUnchanged(t *testing.T) {
	g := New([]int64{1, 2, 3}, []Edge{{From: 1, To: 2}, {From: 1, To: 3}})
	reduced := TransitiveReduction(g)
	if len(reduced.Successors(1)) != 2 {
		t.Fatalf("expected both edges to survive when there's no redundant path, got %v", reduced.Successors(1))
	}
}
