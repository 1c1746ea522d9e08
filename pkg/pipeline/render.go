package pipeline

import (
	"context"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/render/html"
	"github.com/matzehuels/nvlviz/pkg/render/nodelink"
	"github.com/matzehuels/nvlviz/pkg/render/screenshot"
)

// Render generates output artifacts in the requested formats without caching.
// The DOT source and the widget page are produced once and shared between
// the formats that need them.
func Render(ctx context.Context, g *graph.VisualizationGraph, opts Options) (map[string][]byte, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		dot  string
		page []byte
	)
	getDOT := func() string {
		if dot == "" {
			dot = nodelink.ToDOT(g, nodelink.Options{Detailed: opts.Detailed})
		}
		return dot
	}
	getPage := func() ([]byte, error) {
		if page != nil {
			return page, nil
		}
		var err error
		page, err = html.Render(g, opts.HTMLOptions())
		return page, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatHTML:
			data, err = getPage()
		case FormatJSON:
			data, err = graph.Marshal(g)
		case FormatDOT:
			data = []byte(getDOT())
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, getDOT())
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, getDOT(), opts.Scale)
		case FormatPDF:
			data, err = nodelink.RenderPDF(ctx, getDOT())
		case FormatScreenshot:
			data, err = renderScreenshot(ctx, g, opts)
		default:
			err = ValidateFormat(format)
		}
		if err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.ErrCodeInternal
			}
			return nil, errors.Wrap(code, err, "render %s", format)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// renderScreenshot captures a standalone page; fragments cannot be loaded on
// their own.
func renderScreenshot(ctx context.Context, g *graph.VisualizationGraph, opts Options) ([]byte, error) {
	hopts := opts.HTMLOptions()
	hopts.Fragment = false
	page, err := html.Render(g, hopts)
	if err != nil {
		return nil, err
	}
	return screenshot.Capture(ctx, page, opts.Screenshot)
}
