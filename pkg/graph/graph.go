package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/matzehuels/nvlviz/pkg/errors"
)

// DefaultRadius is the node radius range sizes are normalized into.
var DefaultRadius = RadiusRange{Min: 3, Max: 60}

// VisualizationGraph is a snapshot of nodes and relationships to visualize.
type VisualizationGraph struct {
	Nodes         []Node         `json:"nodes" bson:"nodes"`
	Relationships []Relationship `json:"relationships" bson:"relationships"`
}

// New returns a graph over the given nodes and relationships.
// Slices are used as-is; call Validate before handing the graph to a renderer.
func New(nodes []Node, rels []Relationship) *VisualizationGraph {
	if nodes == nil {
		nodes = []Node{}
	}
	if rels == nil {
		rels = []Relationship{}
	}
	return &VisualizationGraph{Nodes: nodes, Relationships: rels}
}

// Validate checks element attributes, node id uniqueness and that every
// relationship endpoint references a node of this graph.
func (g *VisualizationGraph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := ids[n.ID]; dup {
			return errors.New(errors.ErrCodeInvalidGraph, "duplicate node id %s", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for i := range g.Relationships {
		r := &g.Relationships[i]
		if err := r.Validate(); err != nil {
			return err
		}
		if _, ok := ids[r.From]; !ok {
			return errors.New(errors.ErrCodeInvalidGraph, "relationship %s references unknown source node %s", r.ID, r.From)
		}
		if _, ok := ids[r.To]; !ok {
			return errors.New(errors.ErrCodeInvalidGraph, "relationship %s references unknown target node %s", r.ID, r.To)
		}
	}
	return nil
}

// Node returns the node with the given id.
func (g *VisualizationGraph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Relationship returns the relationship with the given id.
func (g *VisualizationGraph) Relationship(id string) (*Relationship, bool) {
	for i := range g.Relationships {
		if g.Relationships[i].ID == id {
			return &g.Relationships[i], true
		}
	}
	return nil, false
}

// HasPositions reports whether every node carries both coordinates.
func (g *VisualizationGraph) HasPositions() bool {
	if len(g.Nodes) == 0 {
		return false
	}
	for i := range g.Nodes {
		if g.Nodes[i].X == nil || g.Nodes[i].Y == nil {
			return false
		}
	}
	return true
}

// TogglePinned sets the pinned flag of the listed nodes. Unlisted nodes keep
// their current state.
func (g *VisualizationGraph) TogglePinned(pinned map[string]bool) {
	for i := range g.Nodes {
		p, ok := pinned[g.Nodes[i].ID]
		if !ok {
			continue
		}
		g.Nodes[i].Pinned = &p
	}
}

// =============================================================================
// Sizing
// =============================================================================

// RadiusRange bounds node radii in pixels.
type RadiusRange struct {
	Min, Max float64
}

// Validate checks 0 <= Min <= Max.
func (r RadiusRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "radius bounds must be non-negative, got (%g, %g)", r.Min, r.Max)
	}
	if r.Min > r.Max {
		return errors.New(errors.ErrCodeInvalidOption, "minimum radius %g exceeds maximum %g", r.Min, r.Max)
	}
	return nil
}

// ResizeNodes updates node sizes and scales them into a radius range.
//
// sizes overrides the size of the listed nodes; nodes not listed keep their
// current size. If bounds is non-nil every known size is normalized linearly
// into it, with all nodes placed at the midpoint when sizes are equal.
// Passing nil for both is an error.
func (g *VisualizationGraph) ResizeNodes(sizes map[string]float64, bounds *RadiusRange) error {
	if sizes == nil && bounds == nil {
		return errors.New(errors.ErrCodeInvalidOption, "at least one of sizes and radius bounds must be given")
	}

	all := make(map[string]float64, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if s, ok := sizes[n.ID]; ok {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return errors.New(errors.ErrCodeInvalidOption, "size for node %s must be a real number, but was %g", n.ID, s)
			}
			if s < 0 {
				return errors.New(errors.ErrCodeInvalidOption, "size for node %s must be non-negative, but was %g", n.ID, s)
			}
			all[n.ID] = s
			continue
		}
		if n.Size != nil {
			all[n.ID] = *n.Size
		}
	}
	if len(all) == 0 {
		return nil
	}

	final := all
	if bounds != nil {
		if err := bounds.Validate(); err != nil {
			return err
		}
		final = normalize(all, bounds.Min, bounds.Max)
	}
	for i := range g.Nodes {
		if s, ok := final[g.Nodes[i].ID]; ok {
			g.Nodes[i].Size = &s
		}
	}
	return nil
}

// normalize maps values linearly into [lo, hi].
func normalize(values map[string]float64, lo, hi float64) map[string]float64 {
	first := true
	var vmin, vmax float64
	for _, v := range values {
		if first || v < vmin {
			vmin = v
		}
		if first || v > vmax {
			vmax = v
		}
		first = false
	}
	span := vmax - vmin
	out := make(map[string]float64, len(values))
	for k, v := range values {
		if math.Abs(span) < 1e-6 {
			out[k] = lo + (hi-lo)/2
			continue
		}
		out[k] = lo + (hi-lo)*(v-vmin)/span
	}
	return out
}

// field returns a node field by canonical name, nil when unset.
func (n *Node) field(name string) any {
	switch name {
	case "id":
		return n.ID
	case "caption":
		if n.Caption == "" {
			return nil
		}
		return n.Caption
	case "captionAlign":
		if n.CaptionAlign == "" {
			return nil
		}
		return string(n.CaptionAlign)
	case "captionSize":
		if n.CaptionSize == 0 {
			return nil
		}
		return n.CaptionSize
	case "size":
		return derefFloat(n.Size)
	case "color":
		if n.Color == "" {
			return nil
		}
		return n.Color
	case "pinned":
		if n.Pinned == nil {
			return nil
		}
		return *n.Pinned
	case "x":
		return derefFloat(n.X)
	case "y":
		return derefFloat(n.Y)
	}
	return nil
}

func derefFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// =============================================================================
// Serialization
// =============================================================================

// Marshal encodes g as indented JSON.
func Marshal(g *VisualizationGraph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes g as indented JSON to w.
func Write(g *VisualizationGraph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return errors.Wrap(errors.ErrCodeUnsupportedField, err, "A field of a graph object is not supported")
	}
	return nil
}

// WriteFile writes g to a JSON file.
func WriteFile(g *VisualizationGraph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(g, f)
}

// Read decodes and validates a JSON graph.
func Read(r io.Reader) (*VisualizationGraph, error) {
	var g VisualizationGraph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode graph")
	}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Relationships == nil {
		g.Relationships = []Relationship{}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ReadFile reads and validates a JSON graph file.
func ReadFile(path string) (*VisualizationGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "graph file %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
