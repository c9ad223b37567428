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
	"fmt"
	"io"
	"strings"
)

type MermaidOpts struct {
	// ShowPaths labels each edge with its declared path.
	ShowPaths bool `json:"showPaths"`

	// MonkeyFill is the fill color for monkey nodes.  Does not
	// apply if MonkeyClass is set.
	MonkeyFill string `json:"monkeyFill,omitempty"`

	// MonkeyClass will be the CSS class for monkey nodes.
	MonkeyClass string `json:"monkeyClass,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given graph.
func Mermaid(g *Graph, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowPaths:  true,
			MonkeyFill: "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph LR\n")

	nids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		nid := fmt.Sprintf("n%d", i+1)
		nids[n.ID] = nid
		name := strings.Replace(n.ID, `"`, `'`, -1)
		if !n.Monkey {
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, name)
			continue
		}
		fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, name)
		switch {
		case opts.MonkeyClass != "":
			fmt.Fprintf(w, "  class %s %s\n", nid, opts.MonkeyClass)
		case opts.MonkeyFill != "":
			fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.MonkeyFill)
		}
	}

	for _, e := range g.Edges {
		label := ""
		if opts.ShowPaths {
			p := strings.Replace(e.Declared.String(), `"`, `'`, -1)
			label = fmt.Sprintf(`-- "%s: %s"`, e.Key, p)
		}
		fmt.Fprintf(w, "  %s %s --> %s\n", nids[e.From], label, nids[e.To])
	}

	_, err := fmt.Fprintf(w, "\n")
	return err
}
