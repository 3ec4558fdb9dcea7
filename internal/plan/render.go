package plan

import (
	"fmt"
	"io"

	"github.com/emicklei/dot"
)

// Format specifies the output format of Render.
type Format string

const (
	// FormatDOT outputs Graphviz DOT.
	FormatDOT Format = "dot"
	// FormatMermaid outputs a Mermaid flowchart.
	FormatMermaid Format = "mermaid"
)

// Render writes the dependency graph of steps to w. Steps are validated first, so an invalid
// plan is never rendered.
func Render(steps []Step, format Format, w io.Writer) error {
	order, err := Order(steps)
	if err != nil {
		return err
	}
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "TB")
	g.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	for _, id := range order {
		n := g.Node(id)
		if d := byID[id].Description; d != "" {
			n.Attr("tooltip", d)
		}
	}
	for _, id := range order {
		for _, dep := range byID[id].DependsOn {
			g.Edge(g.Node(dep), g.Node(id))
		}
	}

	var out string
	switch format {
	case "", FormatDOT:
		out = g.String()
	case FormatMermaid:
		out = dot.MermaidGraph(g, dot.MermaidTopToBottom)
	default:
		return fmt.Errorf("unsupported format %q; expected dot or mermaid", format)
	}
	_, err = io.WriteString(w, out)
	return err
}
