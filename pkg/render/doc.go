// Package render converts rendered graphs between output formats.
//
// The renderers live in subpackages:
//
//   - [html]: the interactive widget page
//   - [nodelink]: static Graphviz diagrams (DOT and SVG)
//   - [screenshot]: PNG captures of the widget page in headless Chrome
//
// [ToPDF] and [ToPNG] convert any SVG using the external rsvg-convert tool
// from librsvg.
//
//	svg, err := nodelink.RenderSVG(ctx, nodelink.ToDOT(g, nodelink.Options{}))
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// [html]: github.com/matzehuels/nvlviz/pkg/render/html
// [nodelink]: github.com/matzehuels/nvlviz/pkg/render/nodelink
// [screenshot]: github.com/matzehuels/nvlviz/pkg/render/screenshot
package render
