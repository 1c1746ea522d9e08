package engine

import (
	"fmt"
	"math"

	"github.com/matzehuels/nvlviz/pkg/errors"
)

// Layout names a layout algorithm run by the engine.
type Layout string

// Layouts understood by the engine. LayoutFree keeps the x/y coordinates
// carried by the nodes.
const (
	LayoutForceDirected Layout = "forcedirected"
	LayoutHierarchical  Layout = "hierarchical"
	LayoutGrid          Layout = "grid"
	LayoutFree          Layout = "free"
)

// Renderer names an engine rendering backend.
type Renderer string

const (
	RendererWebGL  Renderer = "webgl"
	RendererCanvas Renderer = "canvas"
)

// ValidLayouts is the set of supported layouts.
var ValidLayouts = map[Layout]bool{
	LayoutForceDirected: true,
	LayoutHierarchical:  true,
	LayoutGrid:          true,
	LayoutFree:          true,
}

// ValidRenderers is the set of supported renderers.
var ValidRenderers = map[Renderer]bool{
	RendererWebGL:  true,
	RendererCanvas: true,
}

const (
	// DefaultMinZoom is the minimum zoom level.
	DefaultMinZoom = 0.075

	// DefaultMaxZoom is the maximum zoom level.
	DefaultMaxZoom = 10.0

	// DefaultRenderer draws crisp captions and is fast enough for small graphs.
	DefaultRenderer = RendererCanvas

	// CanvasNodeLimit is the node count above which the canvas renderer is
	// noticeably slower than WebGL.
	CanvasNodeLimit = 1000
)

// Config is the typed option set handed to the engine. It is validated once
// before construction; the zero value plus SetDefaults is a usable config.
type Config struct {
	// DisableTelemetry is always forced on when a widget is constructed.
	DisableTelemetry  bool   `json:"disableTelemetry" toml:"-"`
	DisableWebWorkers bool   `json:"disableWebWorkers,omitempty" toml:"disable_web_workers"`
	DisableAria       bool   `json:"disableAria,omitempty" toml:"disable_aria"`
	Layout            Layout `json:"layout,omitempty" toml:"layout"`

	Renderer            Renderer `json:"renderer,omitempty" toml:"renderer"`
	PanX                *float64 `json:"panX,omitempty" toml:"pan_x"`
	PanY                *float64 `json:"panY,omitempty" toml:"pan_y"`
	InitialZoom         *float64 `json:"initialZoom,omitempty" toml:"initial_zoom"`
	MinZoom             float64  `json:"minZoom,omitempty" toml:"min_zoom"`
	MaxZoom             float64  `json:"maxZoom,omitempty" toml:"max_zoom"`
	AllowDynamicMinZoom *bool    `json:"allowDynamicMinZoom,omitempty" toml:"allow_dynamic_min_zoom"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Renderer == "" {
		c.Renderer = DefaultRenderer
	}
	if c.MinZoom == 0 {
		c.MinZoom = DefaultMinZoom
	}
	if c.MaxZoom == 0 {
		c.MaxZoom = DefaultMaxZoom
	}
	if c.AllowDynamicMinZoom == nil {
		t := true
		c.AllowDynamicMinZoom = &t
	}
}

// Validate checks enumerations and zoom bounds.
func (c Config) Validate() error {
	if c.Layout != "" && !ValidLayouts[c.Layout] {
		return errors.New(errors.ErrCodeInvalidOption, "invalid layout: %s (must be forcedirected, hierarchical, grid or free)", c.Layout)
	}
	if c.Renderer != "" && !ValidRenderers[c.Renderer] {
		return errors.New(errors.ErrCodeInvalidOption, "invalid renderer: %s (must be webgl or canvas)", c.Renderer)
	}
	for name, v := range map[string]*float64{"panX": c.PanX, "panY": c.PanY, "initialZoom": c.InitialZoom} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return errors.New(errors.ErrCodeInvalidOption, "%s must be finite", name)
		}
	}
	if c.MinZoom < 0 || c.MaxZoom < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "zoom bounds must be positive")
	}
	if c.MinZoom != 0 && c.MaxZoom != 0 && c.MinZoom > c.MaxZoom {
		return errors.New(errors.ErrCodeInvalidOption, "minZoom %g exceeds maxZoom %g", c.MinZoom, c.MaxZoom)
	}
	if c.InitialZoom != nil {
		z := *c.InitialZoom
		if z <= 0 {
			return errors.New(errors.ErrCodeInvalidOption, "initialZoom must be positive")
		}
		if (c.MinZoom != 0 && z < c.MinZoom) || (c.MaxZoom != 0 && z > c.MaxZoom) {
			return errors.New(errors.ErrCodeInvalidOption, "initialZoom %g outside [%g, %g]", z, c.MinZoom, c.MaxZoom)
		}
	}
	return nil
}

// Sealed returns a copy of c with telemetry disabled. Every engine is built
// from a sealed config.
func (c Config) Sealed() Config {
	c.DisableTelemetry = true
	return c
}

// CheckRenderer returns a warning when r is a poor fit for a graph of n nodes,
// or "" if it is fine.
func CheckRenderer(r Renderer, n int) string {
	if r == RendererCanvas && n > CanvasNodeLimit {
		return fmt.Sprintf("rendering %d nodes with the canvas renderer may be slow; consider the webgl renderer", n)
	}
	return ""
}
