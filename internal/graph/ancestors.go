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

// Ancestors returns every node that transitively references one of
// seeds, plus the seeds themselves: a node u is included if there is a
// path u -> ... -> s in g for some seed s. This is a breadth-first
// search from seeds over the reversed graph, used to build the
// seed-based subgraph an incremental run re-levels and re-processes.
func Ancestors(g *Graph, seeds []int64) []int64 {
	rg := g.Reversed()

	visited := make(map[int64]struct{}, len(seeds))
	var queue []int64
	for _, s := range seeds {
		if !g.Has(s) {
			continue
		}
		if _, ok := visited[s]; ok {
			continue
		}
		visited[s] = struct{}{}
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, p := range rg.Successors(n) {
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}

	out := make([]int64, 0, len(visited))
	for n := range visited {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subgraph restricts g to nodes, keeping only edges whose endpoints
// are both in the set.
func Subgraph(g *Graph, nodes []int64) *Graph {
	nodeSet := make(map[int64]struct{}, len(nodes))
	for _, n := range nodes {
		nodeSet[n] = struct{}{}
	}
	var edges []Edge
	for _, n := range nodes {
		for _, s := range g.Successors(n) {
			if _, ok := nodeSet[s]; ok {
				edges = append(edges, Edge{From: n, To: s})
			}
		}
	}
	return New(nodes, edges)
}
