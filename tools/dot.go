package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v2"
)

// DotOpts controls Dot output.
type DotOpts struct {
	// Highlight is the ID of a node to draw in red.
	Highlight string

	// ShowSource includes getter sources in monkey labels.
	ShowSource bool
}

func htmlEscape(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}

// firstSentence shortens long docs.
func firstSentence(doc string) string {
	if 40 < len(doc) {
		if period := strings.Index(doc, ". "); 0 < period {
			doc = doc[0 : period+1]
		}
	}
	return doc
}

func sourceText(x interface{}) string {
	switch vv := x.(type) {
	case nil:
		return ""
	case string:
		return vv
	case map[string]interface{}:
		if s, is := vv["code"].(string); is {
			return s
		}
	}
	return fmt.Sprintf("%#v", x)
}

// Dot writes a Graphviz dot file for the graph.  Edge labels are the
// declared dependency paths as YAML.
func Dot(g *Graph, w io.Writer, opts *DotOpts) error {
	if opts == nil {
		opts = &DotOpts{}
	}

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "10"]
`)

	ids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		nid := fmt.Sprintf("n%d", i)
		ids[n.ID] = nid

		label := htmlEscape(n.ID)
		fillcolor := "#99ddc8"
		color := "black"
		shape := "record"
		style := "rounded,filled"
		if n.Monkey {
			shape = "note"
			style = "filled"
			fillcolor = "#2d93ad"
			if n.Doc != "" {
				label += "<BR/><FONT POINT-SIZE='8'>" + htmlEscape(firstSentence(n.Doc)) + "</FONT>"
			}
			if src := sourceText(n.Source); opts.ShowSource && src != "" {
				label += `<FONT POINT-SIZE="6">` +
					`<BR/>` + strings.Replace(htmlEscape(src)+"\n", "\n", `<BR ALIGN="LEFT"/>`, -1) +
					`</FONT>`
			}
		}
		if n.Missing {
			style += ",dashed"
			fillcolor = "#eeeeee"
		}
		if n.ID == opts.Highlight {
			color = "red"
			fillcolor = "#f98b8b"
		}
		fmt.Fprintf(w, "  %s [shape=\"%s\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			nid, shape, style, color, fillcolor, label)
	}

	for _, e := range g.Edges {
		js, err := yaml.Marshal(map[string]interface{}{
			e.Key: []interface{}(e.Declared),
		})
		label := string(js)
		if err != nil {
			label = err.Error()
		}
		label = strings.Replace(htmlEscape(strings.TrimSpace(label)), "\n", `<BR ALIGN="LEFT"/>`, -1)
		color := "black"
		if e.From == opts.Highlight || e.To == opts.Highlight {
			color = "red"
		}
		fmt.Fprintf(w, "  %s -> %s [ color=\"%s\" label = <%s> ]\n",
			ids[e.From], ids[e.To], color, label)
	}

	_, err := fmt.Fprintf(w, "}\n")
	return err
}

// PNG runs Graphviz's dot on output from Dot.
//
// This function writes two files: basename.dot and basename.png.
func PNG(g *Graph, basename string, opts *DotOpts) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err = Dot(g, dotfile, opts); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err = dotfile.Close(); err != nil {
		return pngname, err
	}
	if err := exec.Command("dot", "-Tpng", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}
