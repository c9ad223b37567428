/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package tools renders and analyzes the graph of a tree's derived
// values.
package tools

import (
	"fmt"
	"sort"

	"github.com/Comcast/arbor/core"
)

// GraphNode is a monkey or a data path that a monkey reads.
type GraphNode struct {
	// ID is the path's string form.
	ID   string
	Path core.Path

	Monkey bool
	Doc    string
	Source interface{}

	// Missing means no data exists at the path.
	Missing bool
}

// GraphEdge says that To reads From.
type GraphEdge struct {
	From string
	To   string

	// Key is the projection key, or "#i" for the ith positional
	// argument.
	Key string

	// Declared is the path as the definition wrote it.
	Declared core.Path
}

// Graph is the dependency graph of a tree's monkeys.
type Graph struct {
	Nodes []*GraphNode
	Edges []*GraphEdge

	index map[string]*GraphNode
}

// Node finds a node by ID.
func (g *Graph) Node(id string) *GraphNode {
	if g.index == nil {
		g.index = make(map[string]*GraphNode, len(g.Nodes))
		for _, n := range g.Nodes {
			g.index[n.ID] = n
		}
	}
	return g.index[id]
}

// Monkeys returns the monkey nodes.
func (g *Graph) Monkeys() []*GraphNode {
	var acc []*GraphNode
	for _, n := range g.Nodes {
		if n.Monkey {
			acc = append(acc, n)
		}
	}
	return acc
}

// Incoming returns the edges into the node.
func (g *Graph) Incoming(id string) []*GraphEdge {
	var acc []*GraphEdge
	for _, e := range g.Edges {
		if e.To == id {
			acc = append(acc, e)
		}
	}
	return acc
}

// MonkeyGraph builds the graph for the tree's mounted monkeys.
//
// A dependency that lands in or under another monkey becomes an edge
// from that monkey.  Dynamic dependencies are solved against the
// current data.
//
// Call MonkeyGraph on the goroutine that owns the tree.
func MonkeyGraph(tree *core.Tree) *Graph {
	g := &Graph{
		index: make(map[string]*GraphNode),
	}

	node := func(p core.Path) *GraphNode {
		id := p.String()
		if n, have := g.index[id]; have {
			return n
		}
		n := &GraphNode{
			ID:   id,
			Path: p,
		}
		g.index[id] = n
		g.Nodes = append(g.Nodes, n)
		return n
	}

	for _, m := range tree.Monkeys() {
		n := node(m.Path())
		n.Monkey = true
		n.Missing = false
		def := m.Definition()
		n.Doc = def.Doc
		n.Source = def.Source
	}

	for _, m := range tree.Monkeys() {
		to := m.Path().String()
		def := m.Definition()
		declared := def.DepPaths()
		keys := def.Keys()
		for i, p := range m.RelatedPaths(false) {
			var from *GraphNode
			if mp, _ := tree.MonkeyAt(p); mp != nil {
				from = node(mp)
			} else {
				from = node(p)
				from.Missing = p == nil || !tree.Exists(p)
			}
			key := fmt.Sprintf("#%d", i)
			if def.IsObject() {
				key = keys[i]
			}
			g.Edges = append(g.Edges, &GraphEdge{
				From:     from.ID,
				To:       to,
				Key:      key,
				Declared: declared[i],
			})
		}
	}

	sort.Slice(g.Nodes, func(i, j int) bool {
		return g.Nodes[i].ID < g.Nodes[j].ID
	})
	sort.SliceStable(g.Edges, func(i, j int) bool {
		if g.Edges[i].To != g.Edges[j].To {
			return g.Edges[i].To < g.Edges[j].To
		}
		return g.Edges[i].Key < g.Edges[j].Key
	})

	return g
}
