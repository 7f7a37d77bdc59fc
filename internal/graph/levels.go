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

import "sort"

// Group is one strongly connected component: nodes that must be
// processed together because they reference each other, directly or
// transitively.
type Group []int64

// Levels computes the batched topological traversal order of g: the
// nodes of a Level have no unprocessed dependency once every prior
// Level has been handled, and the Groups within one Level are mutually
// independent and may run in parallel. A Group with more than one node
// is a reference cycle; its members are scheduled together.
//
// Construction: reverse g so "has no dependency" becomes "has no
// incoming edge", take the strongly connected components of the
// reversed graph, collapse them into a condensation DAG, transitively
// reduce it, then peel off indegree-zero nodes generation by
// generation (Kahn's algorithm). Each peeled generation is a Level.
func Levels(g *Graph) []Level {
	rg := g.Reversed()
	comps := SCCs(rg)
	dag, members := Condensation(rg, comps)
	reduced := TransitiveReduction(dag)

	for _, m := range members {
		sort.Slice(m, func(i, j int) bool { return m[i] < m[j] })
	}

	indegree := make(map[int64]int, len(reduced.Nodes))
	for _, n := range reduced.Nodes {
		indegree[n] = 0
	}
	for _, tos := range reduced.adj {
		for _, to := range tos {
			indegree[to]++
		}
	}

	var frontier []int64
	for _, n := range reduced.Nodes {
		if indegree[n] == 0 {
			frontier = append(frontier, n)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	var levels []Level
	for len(frontier) > 0 {
		level := make(Level, 0, len(frontier))
		for _, compIdx := range frontier {
			level = append(level, Group(members[compIdx]))
		}
		levels = append(levels, level)

		var next []int64
		for _, compIdx := range frontier {
			for _, s := range reduced.Successors(compIdx) {
				indegree[s]--
				if indegree[s] == 0 {
					next = append(next, s)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		frontier = next
	}

	return levels
}

// Level is one batch of mutually independent Groups.
type Level []Group
