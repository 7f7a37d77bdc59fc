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

// Condensation collapses each SCC of g to a single node, returning the
// condensation DAG (nodes are component indices, 0..len(components)-1)
// together with the per-component member lists in the same order.
func Condensation(g *Graph, components [][]int64) (dag *Graph, members [][]int64) {
	componentOf := make(map[int64]int64, len(g.Nodes))
	for idx, comp := range components {
		for _, n := range comp {
			componentOf[n] = int64(idx)
		}
	}

	nodes := make([]int64, len(components))
	for i := range components {
		nodes[i] = int64(i)
	}

	seen := make(map[[2]int64]struct{})
	var edges []Edge
	for from, tos := range g.adjCopy() {
		cu := componentOf[from]
		for _, to := range tos {
			cv := componentOf[to]
			if cu == cv {
				continue
			}
			key := [2]int64{cu, cv}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, Edge{From: cu, To: cv})
		}
	}

	return New(nodes, edges), components
}

// adjCopy exposes the adjacency map for condensation construction.
func (g *Graph) adjCopy() map[int64][]int64 {
	return g.adj
}

// TransitiveReduction removes edges implied by a longer path, returning
// a new DAG with the same reachability but a minimal edge set. g must
// be acyclic (true for a condensation).
func TransitiveReduction(g *Graph) *Graph {
	order := topoOrder(g)

	// reach[n] = every node reachable from n (excluding n itself),
	// computed bottom-up since g is acyclic.
	reach := make(map[int64]map[int64]struct{}, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		set := make(map[int64]struct{})
		for _, s := range g.Successors(n) {
			set[s] = struct{}{}
			for r := range reach[s] {
				set[r] = struct{}{}
			}
		}
		reach[n] = set
	}

	var edges []Edge
	for _, n := range order {
		succs := g.Successors(n)
		for _, v := range succs {
			redundant := false
			for _, w := range succs {
				if w == v {
					continue
				}
				if _, ok := reach[w][v]; ok {
					redundant = true
					break
				}
			}
			if !redundant {
				edges = append(edges, Edge{From: n, To: v})
			}
		}
	}

	return New(g.Nodes, edges)
}

// topoOrder returns any valid topological order of an acyclic g via
// Kahn's algorithm.
func topoOrder(g *Graph) []int64 {
	indegree := make(map[int64]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n] = 0
	}
	for _, tos := range g.adj {
		for _, to := range tos {
			indegree[to]++
		}
	}

	var queue []int64
	for _, n := range g.Nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []int64
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, s := range g.Successors(n) {
			indegree[s]--
			if indegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return order
}
