// Package pipeline turns a visualization graph into output artifacts.
//
// A run has two stages:
//
//  1. Prepare: apply styling requested on the command line (coloring,
//     sizing, pinning) to a copy of the graph
//  2. Render: produce every requested format, serving artifacts from the
//     cache when the same graph was rendered with the same options before
//
// The CLI and the server share this code so both render identically.
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, g, pipeline.Options{
//	    Formats: []string{"html"},
//	    Bundle:  bundle,
//	})
//	page := result.Artifacts["html"]
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nvlviz/pkg/cache"
	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/render/html"
	"github.com/matzehuels/nvlviz/pkg/render/screenshot"
)

// DefaultScale is the resolution factor for PNG export.
const DefaultScale = 2.0

// Output formats.
const (
	FormatHTML       = "html"
	FormatJSON       = "json"
	FormatDOT        = "dot"
	FormatSVG        = "svg"
	FormatPNG        = "png"
	FormatPDF        = "pdf"
	FormatScreenshot = "screenshot"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatHTML:       true,
	FormatJSON:       true,
	FormatDOT:        true,
	FormatSVG:        true,
	FormatPNG:        true,
	FormatPDF:        true,
	FormatScreenshot: true,
}

// Extension returns the file extension for format.
func Extension(format string) string {
	if format == FormatScreenshot {
		return "png"
	}
	return format
}

// Options configures a pipeline run.
type Options struct {
	Formats []string `json:"formats,omitempty"`

	// Widget page options (html, screenshot).
	Width           string        `json:"width,omitempty"`
	Height          string        `json:"height,omitempty"`
	Title           string        `json:"title,omitempty"`
	Config          engine.Config `json:"config"`
	DisableTooltip  bool          `json:"disable_tooltip,omitempty"`
	MaxAllowedNodes int           `json:"max_allowed_nodes,omitempty"`
	Fragment        bool          `json:"fragment,omitempty"`
	Bundle          []byte        `json:"-"`
	BundleURL       string        `json:"bundle_url,omitempty"`

	// Diagram options (dot, svg, png, pdf).
	Detailed bool    `json:"detailed,omitempty"`
	Scale    float64 `json:"scale,omitempty"`

	// Screenshot configures the headless browser capture.
	Screenshot screenshot.Options `json:"-"`

	// Styling applied before rendering.
	Color  *graph.ColorOptions `json:"color,omitempty"`
	Sizes  map[string]float64  `json:"sizes,omitempty"`
	Radius *graph.RadiusRange  `json:"radius,omitempty"`
	Pinned map[string]bool     `json:"pinned,omitempty"`

	// Refresh bypasses cached artifacts.
	Refresh bool        `json:"refresh,omitempty"`
	Logger  *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the prepared graph the artifacts were rendered from.
	Graph *graph.VisualizationGraph
	// GraphHash is the content hash of Graph.
	GraphHash string
	// Artifacts holds rendered outputs keyed by format.
	Artifacts map[string][]byte
	// Colors reports the coloring, if one was requested.
	Colors *graph.ColorReport

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	NodeCount         int
	RelationshipCount int
	PrepareTime       time.Duration
	RenderTime        time.Duration
}

// CacheInfo tracks cache use.
type CacheInfo struct {
	// RenderHit is true when every artifact came from the cache.
	RenderHit bool
	// Hits lists the formats served from the cache.
	Hits []string
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: html, json, dot, svg, png, pdf, screenshot)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma separated format list.
func ParseFormats(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		if err := ValidateFormat(f); err != nil {
			return nil, err
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "no output format given")
	}
	return out, nil
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatHTML}
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	o.Config.SetDefaults()
}

// Validate checks formats and the engine configuration. Widget formats need
// an engine bundle.
func (o *Options) Validate() error {
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Scale < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "scale must be positive, got %g", o.Scale)
	}
	if o.NeedsWidget() && len(o.Bundle) == 0 && o.BundleURL == "" {
		return errors.New(errors.ErrCodeInvalidOption, "html and screenshot output need an engine bundle (set --bundle or bundle in the config file)")
	}
	if o.Radius != nil {
		if err := o.Radius.Validate(); err != nil {
			return err
		}
	}
	return o.Config.Validate()
}

// NeedsWidget reports whether a widget page format is requested.
func (o *Options) NeedsWidget() bool {
	for _, f := range o.Formats {
		if f == FormatHTML || f == FormatScreenshot {
			return true
		}
	}
	return false
}

// HTMLOptions returns the widget page options.
func (o *Options) HTMLOptions() html.Options {
	return html.Options{
		Width:           o.Width,
		Height:          o.Height,
		Title:           o.Title,
		Config:          o.Config,
		DisableTooltip:  o.DisableTooltip,
		MaxAllowedNodes: o.MaxAllowedNodes,
		Bundle:          o.Bundle,
		BundleURL:       o.BundleURL,
		Fragment:        o.Fragment,
		Logger:          o.Logger,
	}
}

// ArtifactKeyOpts returns the cache key options for format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{Format: format}
	switch format {
	case FormatHTML, FormatScreenshot:
		k.Width, k.Height = o.Width, o.Height
		k.Tooltip = !o.DisableTooltip
		k.Fragment = o.Fragment
		k.ConfigHash, _ = cache.HashJSON(o.Config)
		if len(o.Bundle) > 0 {
			k.BundleHash = cache.Hash(o.Bundle)
		} else {
			k.BundleHash = cache.Hash([]byte(o.BundleURL))
		}
		if format == FormatScreenshot {
			k.Viewport = fmt.Sprintf("%dx%d", o.Screenshot.Width, o.Screenshot.Height)
		}
	case FormatDOT, FormatSVG, FormatPNG, FormatPDF:
		k.Detailed = o.Detailed
		if format == FormatPNG {
			k.Scale = o.Scale
		}
	}
	return k
}

func (o *Options) String() string {
	return fmt.Sprintf("formats=%s", strings.Join(o.Formats, ","))
}
