package drawer

import (
	"io"
	"sort"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

const dotTemplate = `strict digraph {
{{- range $s := .Statements}}
	"{{.Source}}" {{if .Target}}-> "{{.Target}}"{{else}}[ {{range $k, $v := .Attributes}}{{$k}}="{{$v}}", {{end}} ]{{end}};
{{- end}}
}
`

type statement struct {
	Source     string
	Target     string
	Attributes map[string]string
}

type description struct {
	Statements []statement
}

// dot renders the step graph in Graphviz DOT form with vertices emitted in
// stable order.
func dot(g graph.Graph[string, string], wrt io.Writer) error {
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}

	vertices := make([]string, 0, len(adjacency))
	for vertex := range adjacency {
		vertices = append(vertices, vertex)
	}
	sort.Strings(vertices)

	desc := description{}

	for _, vertex := range vertices {
		_, props, err := g.VertexWithProperties(vertex)
		if err != nil {
			return errors.Wrapf(err, "unable to get vertex %s", vertex)
		}

		desc.Statements = append(desc.Statements, statement{Source: vertex, Attributes: props.Attributes})

		targets := make([]string, 0, len(adjacency[vertex]))
		for target := range adjacency[vertex] {
			targets = append(targets, target)
		}
		sort.Strings(targets)

		for _, target := range targets {
			desc.Statements = append(desc.Statements, statement{Source: vertex, Target: target})
		}
	}

	tpl, err := template.New("dot").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "unable to parse dot template")
	}

	return errors.Wrap(tpl.Execute(wrt, desc), "unable to render dot template")
}
