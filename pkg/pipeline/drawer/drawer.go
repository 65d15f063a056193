// Package drawer renders a pipeline's declared step graph to Graphviz DOT,
// optionally annotated with per-step durations from an execution trace.
//
// Drawing is purely advisory: it never affects execution, and a pipeline can
// be drawn before it ever runs (the preview of a workflow's shape).
package drawer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1"

	"github.com/convio/conveyor/internal/store"
	"github.com/convio/conveyor/pkg/pipeline/model"
)

const (
	startVertex = "start"
	endVertex   = "end"
)

// Drawer accumulates one pipeline's step graph.
type Drawer struct {
	graph graph.Graph[string, string]
	store *store.StepStore
}

// New creates a drawer holding an empty directed step graph.
func New() (*Drawer, error) {
	stepStore := store.New()
	g := graph.NewWithStore(graph.StringHash, graph.Store[string, string](stepStore), graph.Directed())

	d := &Drawer{graph: g, store: stepStore}

	if err := d.graph.AddVertex(startVertex); err != nil {
		return nil, errors.Wrap(err, "unable to add start vertex")
	}
	if err := d.graph.AddVertex(endVertex); err != nil {
		return nil, errors.Wrap(err, "unable to add end vertex")
	}

	return d, nil
}

// AddPipeline adds one vertex per declared step, chained in append order
// between the start and end vertices. Step descriptions become vertex
// labels.
func (d *Drawer) AddPipeline(infos []model.StepInfo) error {
	previous := startVertex

	for _, info := range infos {
		err := d.graph.AddVertex(info.ID, graph.VertexAttribute("label", fmt.Sprintf("%s\\n%s", info.ID, info.Description)))
		if err != nil {
			return errors.Wrapf(err, "unable to add step %s", info.ID)
		}

		if err := d.graph.AddEdge(previous, info.ID); err != nil {
			return errors.Wrapf(err, "unable to add edge from %s to %s", previous, info.ID)
		}

		previous = info.ID
	}

	if err := d.graph.AddEdge(previous, endVertex); err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to end", previous)
	}

	return nil
}

// ApplyTrace annotates each step vertex with its measured duration and a
// red-to-blue heat colour: the slowest step is pure red, the fastest pure
// blue.
func (d *Drawer) ApplyTrace(trace *model.ExecutionTrace) error {
	if trace == nil || len(trace.Steps) == 0 {
		return nil
	}

	minDuration, maxDuration := trace.Steps[0].Duration, trace.Steps[0].Duration
	for _, record := range trace.Steps {
		if record.Duration < minDuration {
			minDuration = record.Duration
		}
		if record.Duration > maxDuration {
			maxDuration = record.Duration
		}
	}

	for _, record := range trace.Steps {
		hex, err := heatColour(record.Duration, minDuration, maxDuration)
		if err != nil {
			return err
		}

		duration := record.Duration

		d.store.UpdateVertex(record.StepID, func(props *graph.VertexProperties) {
			if props.Attributes == nil {
				props.Attributes = make(map[string]string)
			}
			props.Attributes["xlabel"] = duration.String()
			props.Attributes["color"] = hex
		})
	}

	d.store.UpdateVertex(endVertex, func(props *graph.VertexProperties) {
		if props.Attributes == nil {
			props.Attributes = make(map[string]string)
		}
		props.Attributes["xlabel"] = trace.TotalDuration.String()
	})

	return nil
}

const maxRGB = 240

// heatColour maps a duration onto a red(slow)-blue(fast) gradient.
func heatColour(current, minDuration, maxDuration time.Duration) (string, error) {
	fraction := 1.0
	if maxDuration > minDuration {
		fraction = float64(current-minDuration) / float64(maxDuration-minDuration)
	}

	red := uint8(maxRGB * fraction)
	blue := uint8(maxRGB * (1 - fraction))

	colour, err := colors.RGB(red, 0, blue)
	if err != nil {
		return "", errors.Wrap(err, "unable to build colour")
	}

	return colour.ToHEX().String(), nil
}

// Render writes the graph as DOT.
func (d *Drawer) Render(wrt io.Writer) error {
	return dot(d.graph, wrt)
}

// RenderFile writes the graph as DOT to the named file.
func (d *Drawer) RenderFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", name)
	}
	defer file.Close()

	return d.Render(file)
}
