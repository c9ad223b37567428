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

package tools

import (
	"sort"
	"strings"
)

// Analysis summarizes a Graph.
type Analysis struct {
	Monkeys int
	Edges   int

	// Chained lists monkeys that read other monkeys.
	Chained []string

	// Missing lists dependency paths with no data.
	Missing []string

	// Unused lists monkeys that nothing else reads.
	Unused []string

	// Cycles lists each dependency cycle once, starting at its
	// smallest ID.
	Cycles [][]string

	// Depth is the longest chain of monkeys reading monkeys
	// (ignoring cycles).  A monkey that reads only data has depth
	// 1.
	Depth int
}

// Analyze looks for chains, missing data, and cycles.
func Analyze(g *Graph) *Analysis {
	a := &Analysis{
		Edges: len(g.Edges),
	}

	reads := make(map[string][]string)
	read := make(map[string]bool)
	chained := make(map[string]bool)
	for _, e := range g.Edges {
		from := g.Node(e.From)
		if from != nil && from.Monkey {
			reads[e.To] = append(reads[e.To], e.From)
			chained[e.To] = true
		}
		read[e.From] = true
	}

	for _, n := range g.Nodes {
		switch {
		case n.Monkey:
			a.Monkeys++
			if chained[n.ID] {
				a.Chained = append(a.Chained, n.ID)
			}
			if !read[n.ID] {
				a.Unused = append(a.Unused, n.ID)
			}
		case n.Missing:
			a.Missing = append(a.Missing, n.ID)
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	depth := make(map[string]int)
	var stack []string
	seen := make(map[string]bool)

	var visit func(id string) int
	visit = func(id string) int {
		switch color[id] {
		case grey:
			for i := len(stack) - 1; 0 <= i; i-- {
				if stack[i] == id {
					cycle := canonicalCycle(stack[i:])
					key := strings.Join(cycle, " ")
					if !seen[key] {
						seen[key] = true
						a.Cycles = append(a.Cycles, cycle)
					}
					break
				}
			}
			return 0
		case black:
			return depth[id]
		}
		color[id] = grey
		stack = append(stack, id)
		d := 0
		for _, from := range reads[id] {
			if n := visit(from); d < n {
				d = n
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		depth[id] = d + 1
		return d + 1
	}

	for _, n := range g.Nodes {
		if !n.Monkey {
			continue
		}
		if d := visit(n.ID); a.Depth < d {
			a.Depth = d
		}
	}

	sort.Slice(a.Cycles, func(i, j int) bool {
		return strings.Join(a.Cycles[i], " ") < strings.Join(a.Cycles[j], " ")
	})

	return a
}

// canonicalCycle rotates the cycle to start at its smallest element.
func canonicalCycle(ids []string) []string {
	min := 0
	for i, id := range ids {
		if id < ids[min] {
			min = i
		}
	}
	acc := make([]string, 0, len(ids))
	acc = append(acc, ids[min:]...)
	return append(acc, ids[:min]...)
}
