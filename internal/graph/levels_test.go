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

// Node ids stand in for definitions: A, B live in base.x (no references);
// S references A, T references B, both live in mid.x; M references both
// S and T, in top.x.
const (
	nodeA int64 = iota + 1
	nodeB
	nodeS
	nodeT
	nodeM
)

func levelsAsSlices(t *testing.T, levels []Level) [][][]int64 {
	t.Helper()
	out := make([][][]int64, len(levels))
	for i, lvl := range levels {
		groups := make([][]int64, len(lvl))
		for j, g := range lvl {
			groups[j] = []int64(g)
		}
		out[i] = groups
	}
	return out
}

func TestLevels_ThreeLevelTraversal(t *testing.T) {
	g := New(
		[]int64{nodeA, nodeB, nodeS, nodeT, nodeM},
		[]Edge{
			{From: nodeS, To: nodeA},
			{From: nodeT, To: nodeB},
			{From: nodeM, To: nodeS},
			{From: nodeM, To: nodeT},
		},
	)

	levels := Levels(g)
	got := levelsAsSlices(t, levels)
	want := [][][]int64{
		{{nodeA}, {nodeB}},
		{{nodeS}, {nodeT}},
		{{nodeM}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Levels() = %v, want %v", got, want)
	}
}

func TestLevels_TwoNodeCycleIsOneLevelOneGroup(t *testing.T) {
	const nodeX int64 = 1
	const nodeY int64 = 2
	g := New(
		[]int64{nodeX, nodeY},
		[]Edge{
			{From: nodeX, To: nodeY},
			{From: nodeY, To: nodeX},
		},
	)

	levels := Levels(g)
	if len(levels) != 1 {
		t.Fatalf("expected a single level for a 2-cycle, got %d", len(levels))
	}
	if len(levels[0]) != 1 {
		t.Fatalf("expected the cycle to collapse into a single group, got %d groups", len(levels[0]))
	}
	group := append([]int64(nil), levels[0][0]...)
	want := []int64{nodeX, nodeY}
	if !reflect.DeepEqual(group, want) {
		t.Fatalf("group = %v, want %v", group, want)
	}
}

func TestLevels_EmptyGraph(t *testing.T) {
	g := New(nil, nil)
	levels := Levels(g)
	if len(levels) != 0 {
		t.Fatalf("expected no levels for an empty graph, got %d", len(levels))
	}
}

func TestLevels_DisconnectedNodesShareALevel(t *testing.T) {
	g := New([]int64{1, 2, 3}, nil)
	levels := Levels(g)
	if len(levels) != 1 {
		t.Fatalf("expected one level for three independent nodes, got %d", len(levels))
	}
	if len(levels[0]) != 3 {
		t.Fatalf("expected three independent groups, got %d", len(levels[0]))
	}
}

func TestLevels_SelfReferenceExcluded(t *testing.T) {
	g := New([]int64{1}, []Edge{{From: 1, To: 1}})
	levels := Levels(g)
	if len(levels) != 1 || len(levels[0]) != 1 || len(levels[0][0]) != 1 {
		t.Fatalf("self-reference should not create a multi-node group: %v", levels)
	}
}
