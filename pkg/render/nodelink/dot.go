package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/render"
)

// pointsPerInch converts widget pixels to Graphviz inches.
const pointsPerInch = 72.0

// Options configures diagram generation.
type Options struct {
	// Detailed adds the element properties to the labels.
	Detailed bool
}

// ToDOT converts g to Graphviz DOT. Nodes without a caption are labeled with
// their id; relationships are labeled with their caption, if any.
func ToDOT(g *graph.VisualizationGraph, opts Options) string {
	positioned := g.HasPositions()

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	if positioned {
		buf.WriteString("  layout=neato;\n")
		fmt.Fprintf(&buf, "  inputscale=%g;\n", pointsPerInch)
	} else {
		buf.WriteString("  rankdir=TB;\n")
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fillcolor=%q, fontname=\"Helvetica\", fontsize=10];\n", graph.MissingColor)
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, color=\"#8d8d8d\"];\n")
	buf.WriteString("\n")

	for i := range g.Nodes {
		n := &g.Nodes[i]
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts.Detailed, positioned), ", "))
	}

	buf.WriteString("\n")
	for i := range g.Relationships {
		r := &g.Relationships[i]
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", r.From, r.To, strings.Join(relAttrs(r, opts.Detailed), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n *graph.Node, detailed, positioned bool) []string {
	label := n.Caption
	if label == "" {
		label = n.ID
	}
	if detailed {
		label += fmtProperties(n.Properties)
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.Color != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", n.Color), fmt.Sprintf("fontcolor=%q", textColor(n.Color)))
	}
	if n.Size != nil {
		// Size is a radius in pixels.
		attrs = append(attrs, fmt.Sprintf("width=%.2f", 2**n.Size/pointsPerInch))
	}
	if positioned {
		// The widget's y axis points down, Graphviz's up.
		y := -*n.Y
		if y == 0 { // no negative zero
			y = 0
		}
		attrs = append(attrs, fmt.Sprintf("pos=\"%g,%g!\"", *n.X, y))
	}
	return attrs
}

func relAttrs(r *graph.Relationship, detailed bool) []string {
	label := r.Caption
	if detailed {
		label += fmtProperties(r.Properties)
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if r.Color != "" {
		attrs = append(attrs, fmt.Sprintf("color=%q", r.Color))
	}
	return attrs
}

func fmtProperties(props map[string]any) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(props)) {
		fmt.Fprintf(&b, "\n%s: %v", k, props[k])
	}
	return b.String()
}

// textColor picks black or white, whichever reads better on fill.
func textColor(fill string) string {
	c, err := colorful.Hex(fill)
	if err != nil {
		return "black"
	}
	if l, _, _ := c.Lab(); l > 0.6 {
		return "black"
	}
	return "white"
}

// RenderSVG lays out a DOT graph and renders it to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse DOT")
	}
	defer g.Close()

	if strings.Contains(dot, "layout=neato;") {
		gv.SetLayout(graphviz.NEATO)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render DOT")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-sized root element with one that
// scales to its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPDF renders a DOT graph as PDF via SVG.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG at the given scale.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
