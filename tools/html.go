package tools

import (
	"fmt"
	"html"
	"io"

	"github.com/russross/blackfriday/v2"
)

// RenderMonkeyHTML writes an HTML fragment that documents each
// monkey: its doc (as Markdown), its dependencies, and its source.
func RenderMonkeyHTML(g *Graph, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="monkeys">`)
	for _, n := range g.Monkeys() {
		id := html.EscapeString(n.ID)
		f(`<div class="monkey" id="%s">`, id)
		f(`<h2 class="monkeyPath">%s</h2>`, id)
		if n.Doc != "" {
			f(`<div class="monkeyDoc">%s</div>`, blackfriday.Run([]byte(n.Doc)))
		}

		if edges := g.Incoming(n.ID); 0 < len(edges) {
			f(`<table class="deps">`)
			for _, e := range edges {
				class := "dep"
				if from := g.Node(e.From); from != nil {
					switch {
					case from.Monkey:
						class += " derived"
					case from.Missing:
						class += " missing"
					}
				}
				f(`<tr class="%s"><td class="depKey">%s</td><td class="depPath"><a href="#%s">%s</a></td></tr>`,
					class, html.EscapeString(e.Key), html.EscapeString(e.From), html.EscapeString(e.Declared.String()))
			}
			f(`</table>`)
		}

		if src := sourceText(n.Source); src != "" {
			f(`<pre class="monkeySource">%s</pre>`, html.EscapeString(src))
		}
		f(`</div>`)
	}
	f(`</div>`)

	return nil
}

// RenderMonkeyPage writes a complete page around RenderMonkeyHTML.
func RenderMonkeyPage(g *Graph, out io.Writer, title string, cssFiles []string) error {
	fmt.Fprintf(out, `<!DOCTYPE html>
<html>
  <head>
  <meta charset="utf-8">
  <title>%s</title>
`, html.EscapeString(title))

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", html.EscapeString(cssFile))
	}

	fmt.Fprintf(out, `  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(title))

	if err := RenderMonkeyHTML(g, out); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, `
  </body>
</html>
`)
	return err
}
