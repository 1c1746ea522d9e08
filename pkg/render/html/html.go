// Package html renders a visualization graph as a self-contained HTML widget.
//
// The page embeds the NVL engine bundle, a container element, zoom and
// screenshot buttons and, unless disabled, a hover tooltip. Tooltip contents
// are produced in Go by package hover for every element and shipped as a
// lookup table, so the page script only has to show the entry for the element
// under the pointer.
//
// In live mode the page carries no graph data. It connects to a websocket and
// executes the engine commands a server-side widget sends it (see package
// live).
//
// The engine bundle must define a global NVLBase exposing NVL and the
// ZoomInteraction, PanInteraction, DragNodeInteraction and HoverInteraction
// handlers. Pass it inline with Options.Bundle or by URL with
// Options.BundleURL.
package html

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/hover"
)

// Defaults for Options.
const (
	DefaultWidth           = "100%"
	DefaultHeight          = "600px"
	DefaultMaxAllowedNodes = 10_000
	DefaultTitle           = "nvlviz"
)

// Options configures Render.
type Options struct {
	Width  string // CSS length, default 100%
	Height string // CSS length, default 600px
	Title  string

	Config engine.Config

	// DisableTooltip omits the hover tooltip.
	DisableTooltip bool
	// MaxAllowedNodes rejects larger graphs; 0 means DefaultMaxAllowedNodes.
	MaxAllowedNodes int

	// Bundle is the engine bundle source, inlined into the page.
	Bundle []byte
	// BundleURL loads the engine bundle from a URL instead.
	BundleURL string

	// Fragment emits only the widget markup, for embedding in another page.
	Fragment bool
	// Live switches the page to websocket-driven mode.
	Live *LiveOptions

	// ContainerID overrides the generated container id.
	ContainerID string

	Logger *log.Logger
}

// LiveOptions configures a websocket-driven page.
type LiveOptions struct {
	// SocketPath is the absolute path of the websocket endpoint.
	SocketPath string
}

var cssLength = regexp.MustCompile(`^\d+(\.\d+)?(px|%|em|rem|vh|vw)$`)

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Width == "" {
		o.Width = DefaultWidth
	}
	if o.Height == "" {
		o.Height = DefaultHeight
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.MaxAllowedNodes == 0 {
		o.MaxAllowedNodes = DefaultMaxAllowedNodes
	}
	o.Config.SetDefaults()
}

// Validate checks sizes, the engine config and the bundle source.
func (o *Options) Validate() error {
	if !cssLength.MatchString(o.Width) {
		return errors.New(errors.ErrCodeInvalidOption, "invalid width %q (expected a CSS length such as 100%% or 800px)", o.Width)
	}
	if !cssLength.MatchString(o.Height) {
		return errors.New(errors.ErrCodeInvalidOption, "invalid height %q (expected a CSS length such as 600px)", o.Height)
	}
	if len(o.Bundle) == 0 && o.BundleURL == "" {
		return errors.New(errors.ErrCodeInvalidOption, "no engine bundle configured (set a bundle file or bundle URL)")
	}
	if o.BundleURL != "" {
		if err := errors.ValidateURL(o.BundleURL); err != nil && !strings.HasPrefix(o.BundleURL, "/") {
			return err
		}
	}
	if o.Live != nil && !strings.HasPrefix(o.Live.SocketPath, "/") {
		return errors.New(errors.ErrCodeInvalidOption, "live socket path must be absolute, got %q", o.Live.SocketPath)
	}
	return o.Config.Validate()
}

type pageData struct {
	Title       string
	Width       string
	Height      string
	ContainerID string
	TooltipID   string
	VarName     string
	Tooltip     bool
	Fragment    bool
	Bundle      string
	BundleURL   string
	Live        *LiveOptions

	Nodes         string
	Relationships string
	Options       string
	Tips          string
}

// Render returns the widget page for g.
func Render(g *graph.VisualizationGraph, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the widget page for g to w.
func Write(w io.Writer, g *graph.VisualizationGraph, opts Options) error {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}

	n := len(g.Nodes)
	if n > opts.MaxAllowedNodes {
		return errors.New(errors.ErrCodeTooManyNodes,
			"Too many nodes (%d) to render. Maximum allowed nodes is set to %d for performance reasons. "+
				"It can be increased, but rendering could then take a long time", n, opts.MaxAllowedNodes)
	}
	if warning := engine.CheckRenderer(opts.Config.Renderer, n); warning != "" && opts.Logger != nil {
		opts.Logger.Warn(warning)
	}

	id := opts.ContainerID
	if id == "" {
		id = uuid.NewString()
	}
	data := pageData{
		Title:       opts.Title,
		Width:       opts.Width,
		Height:      opts.Height,
		ContainerID: id,
		TooltipID:   id + "-tooltip",
		VarName:     VarName(id),
		Tooltip:     !opts.DisableTooltip,
		Fragment:    opts.Fragment,
		Bundle:      strings.ReplaceAll(string(opts.Bundle), "</script", `<\/script`),
		BundleURL:   opts.BundleURL,
		Live:        opts.Live,
	}

	if opts.Live == nil {
		nodes, err := marshalElements(g.Nodes, "node")
		if err != nil {
			return err
		}
		rels, err := marshalElements(g.Relationships, "relationship")
		if err != nil {
			return err
		}
		options, err := json.Marshal(opts.Config.Sealed())
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode engine options")
		}
		tips, err := json.Marshal(Tooltips(g))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode tooltips")
		}
		data.Nodes, data.Relationships = nodes, rels
		data.Options, data.Tips = string(options), string(tips)
	}

	return pageTemplate.ExecuteTemplate(w, "page", data)
}

// VarName returns the global the page binds the engine instance to. It is
// unique per container so several widgets can share a page.
func VarName(containerID string) string {
	first, _, _ := strings.Cut(containerID, "-")
	return "graph_" + strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, first)
}

// Tooltips returns the tooltip markup for every element of g, keyed by
// "n:<id>" for nodes and "r:<id>" for relationships.
func Tooltips(g *graph.VisualizationGraph) map[string]string {
	tips := make(map[string]string, len(g.Nodes)+len(g.Relationships))
	for i := range g.Nodes {
		tips["n:"+g.Nodes[i].ID] = hover.Render(hover.Classify(&g.Nodes[i])).Content
	}
	for i := range g.Relationships {
		tips["r:"+g.Relationships[i].ID] = hover.Render(hover.Classify(&g.Relationships[i])).Content
	}
	return tips
}

// marshalElements encodes elements for inlining in a script. The encoder
// escapes <, > and & so the output cannot close the script element.
func marshalElements(v any, entity string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnsupportedField, err, "A field of a %s object is not supported", entity)
	}
	return string(data), nil
}

func attrEscape(s string) string {
	return html.EscapeString(s)
}
