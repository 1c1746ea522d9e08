// Package nodelink renders visualization graphs as static node-link diagrams.
//
// [ToDOT] produces Graphviz DOT source that keeps captions, colors and sizes
// of the interactive widget. [RenderSVG] lays it out in-process with
// [github.com/goccy/go-graphviz]:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Graphs where every node carries x/y coordinates are drawn at those
// positions with the neato engine; all others are laid out top to bottom with
// dot. For PDF or PNG output use [RenderPDF] and [RenderPNG], which convert
// the SVG with rsvg-convert.
package nodelink
