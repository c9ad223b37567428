package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Comcast/arbor/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cart(t *testing.T) *core.Tree {
	sum := core.MustMonkeyFrom(map[string]core.Path{
		"items": {"items"},
	}, func(deps map[string]interface{}) interface{} {
		acc := 0
		for _, x := range deps["items"].([]interface{}) {
			acc += x.(int)
		}
		return acc
	})
	sum.Doc = "The *sum* of the items."
	sum.Source = "return _.deps.items.reduce(add, 0);"

	data := map[string]interface{}{
		"items": []interface{}{1, 2},
		"stats": map[string]interface{}{
			"sum": sum,
			"double": core.MustMonkeyOf([]core.Path{{".", "sum"}}, func(args ...interface{}) interface{} {
				return 2 * args[0].(int)
			}),
			"label": core.MustMonkeyOf([]core.Path{{"nowhere"}}, func(args ...interface{}) interface{} {
				return args[0]
			}),
		},
	}

	opts := core.DefaultOptions()
	opts.Asynchronous = false
	tree, err := core.New(data, opts)
	require.NoError(t, err)
	t.Cleanup(tree.Release)
	return tree
}

func TestMonkeyGraph(t *testing.T) {
	g := MonkeyGraph(cart(t))

	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"/items", "/nowhere", "/stats/double", "/stats/label", "/stats/sum"}, ids)
	assert.Len(t, g.Monkeys(), 3)
	assert.True(t, g.Node("/nowhere").Missing)
	assert.False(t, g.Node("/items").Missing)

	in := g.Incoming("/stats/double")
	require.Len(t, in, 1)
	assert.Equal(t, "/stats/sum", in[0].From)
	assert.Equal(t, "#0", in[0].Key)
	assert.Equal(t, core.Path{".", "sum"}, in[0].Declared)

	in = g.Incoming("/stats/sum")
	require.Len(t, in, 1)
	assert.Equal(t, "items", in[0].Key)
	assert.Equal(t, "The *sum* of the items.", g.Node("/stats/sum").Doc)
}

func TestAnalyze(t *testing.T) {
	a := Analyze(MonkeyGraph(cart(t)))
	assert.Equal(t, 3, a.Monkeys)
	assert.Equal(t, 3, a.Edges)
	assert.Equal(t, []string{"/stats/double"}, a.Chained)
	assert.Equal(t, []string{"/nowhere"}, a.Missing)
	assert.Equal(t, []string{"/stats/double", "/stats/label"}, a.Unused)
	assert.Empty(t, a.Cycles)
	assert.Equal(t, 2, a.Depth)
}

func TestAnalyzeCycles(t *testing.T) {
	g := &Graph{
		Nodes: []*GraphNode{
			{ID: "/a", Monkey: true},
			{ID: "/b", Monkey: true},
			{ID: "/c", Monkey: true},
		},
		Edges: []*GraphEdge{
			{From: "/a", To: "/b"},
			{From: "/b", To: "/c"},
			{From: "/c", To: "/a"},
		},
	}
	a := Analyze(g)
	assert.Equal(t, [][]string{{"/a", "/c", "/b"}}, a.Cycles)
	assert.Empty(t, a.Unused)
}

func TestDot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dot(MonkeyGraph(cart(t)), &buf, &DotOpts{
		Highlight:  "/stats/sum",
		ShowSource: true,
	}))
	s := buf.String()
	assert.True(t, strings.HasPrefix(s, "digraph G {\n"))
	assert.True(t, strings.HasSuffix(s, "}\n"))
	assert.Contains(t, s, `label=</stats/sum<BR/>`)
	assert.Contains(t, s, `return _.deps.items.reduce(add, 0);`)
	assert.Contains(t, s, `fillcolor="#f98b8b"`)
	assert.Contains(t, s, `style="rounded,filled,dashed"`)
	// Edge labels are YAML.
	assert.Contains(t, s, `label = <items:<BR ALIGN="LEFT"/>- items>`)
	assert.Equal(t, 3, strings.Count(s, " -> "))
}

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Mermaid(MonkeyGraph(cart(t)), &buf, nil))
	s := buf.String()
	assert.True(t, strings.HasPrefix(s, "graph LR\n"))
	assert.Contains(t, s, `n1("/items")`)
	assert.Contains(t, s, `n5["/stats/sum"]`)
	assert.Contains(t, s, `style n5 fill:#bcf2db`)
	assert.Contains(t, s, `n1 -- "items: /items" --> n5`)
	assert.Contains(t, s, `n5 -- "#0: /./sum" --> n3`)
}

func TestRenderMonkeyPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMonkeyPage(MonkeyGraph(cart(t)), &buf, "Cart", []string{"/static/monkeys.css"}))
	s := buf.String()
	assert.Contains(t, s, "<title>Cart</title>")
	assert.Contains(t, s, `<link href="/static/monkeys.css" rel="stylesheet">`)
	assert.Contains(t, s, "<em>sum</em>")
	assert.Contains(t, s, `<tr class="dep derived"><td class="depKey">#0</td>`)
	assert.Contains(t, s, `<tr class="dep missing">`)
	assert.Contains(t, s, `<pre class="monkeySource">return _.deps.items.reduce(add, 0);</pre>`)
}
