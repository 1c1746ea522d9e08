package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/pipeline"
	"github.com/matzehuels/nvlviz/pkg/store"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string // output file (single format) or base path (several)
	formats   string // comma-separated output formats
	fromStore bool   // treat the argument as a stored graph name
	noCache   bool
	refresh   bool

	// widget page
	width, height, title string
	layout, renderer     string
	panX, panY, zoom     float64
	minZoom, maxZoom     float64
	noDynamicMinZoom     bool
	noTooltip            bool
	maxNodes             int
	fragment             bool
	bundle, bundleURL    string

	// diagrams
	detailed bool
	scale    float64
	viewport string

	// styling
	colorBy        string
	colorByField   string
	colorSpace     string
	palette        []string
	colorMap       []string
	overrideColors bool
	sizeBy         string
	radius         string
	pin            []string
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <graph.json | name>",
		Short: "Render a graph as a widget page or a static diagram",
		Long: `Render a graph file (or, with --stored, a stored graph) in one or more formats.

Formats:
  html        self-contained interactive widget page with hover tooltips
  json        the prepared graph
  dot         Graphviz source
  svg, pdf    static diagram
  png         static diagram raster (see --scale)
  screenshot  PNG of the widget page taken in headless Chrome`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (several formats)")
	f.StringVarP(&opts.formats, "format", "f", pipeline.FormatHTML, "output format(s): html, json, dot, svg, png, pdf, screenshot (comma-separated)")
	f.BoolVar(&opts.fromStore, "stored", false, "render the stored graph with this name")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	f.BoolVar(&opts.refresh, "refresh", false, "re-render even when cached")

	f.StringVar(&opts.width, "width", "", "widget width as a CSS length (default 100%)")
	f.StringVar(&opts.height, "height", "", "widget height as a CSS length (default 600px)")
	f.StringVar(&opts.title, "title", "", "page title")
	f.StringVar(&opts.layout, "layout", "", "layout: forcedirected, hierarchical, grid, free")
	f.StringVar(&opts.renderer, "renderer", "", "renderer: canvas (default), webgl")
	f.Float64Var(&opts.panX, "pan-x", 0, "initial horizontal pan")
	f.Float64Var(&opts.panY, "pan-y", 0, "initial vertical pan")
	f.Float64Var(&opts.zoom, "zoom", 0, "initial zoom level")
	f.Float64Var(&opts.minZoom, "min-zoom", 0, "minimum zoom level (default 0.075)")
	f.Float64Var(&opts.maxZoom, "max-zoom", 0, "maximum zoom level (default 10)")
	f.BoolVar(&opts.noDynamicMinZoom, "no-dynamic-min-zoom", false, "do not lower the minimum zoom to fit the graph")
	f.BoolVar(&opts.noTooltip, "no-tooltip", false, "disable the hover tooltip")
	f.IntVar(&opts.maxNodes, "max-nodes", 0, "refuse graphs with more nodes (default 10000)")
	f.BoolVar(&opts.fragment, "fragment", false, "emit only the widget markup for embedding")
	f.StringVar(&opts.bundle, "bundle", "", "engine bundle file inlined into the page")
	f.StringVar(&opts.bundleURL, "bundle-url", "", "engine bundle URL referenced by the page")

	f.BoolVar(&opts.detailed, "detailed", false, "show properties in static diagrams")
	f.Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "resolution factor for png")
	f.StringVar(&opts.viewport, "viewport", "", "screenshot viewport as WIDTHxHEIGHT (default 1280x800)")

	f.StringVar(&opts.colorBy, "color-by", "", "color nodes by this property")
	f.StringVar(&opts.colorByField, "color-by-field", "", "color nodes by this node field (e.g. caption)")
	f.StringVar(&opts.colorSpace, "color-space", "", "color space: discrete (default), continuous")
	f.StringSliceVar(&opts.palette, "palette", nil, "colors to color with")
	f.StringSliceVar(&opts.colorMap, "color-map", nil, "explicit value=color pairs")
	f.BoolVar(&opts.overrideColors, "override-colors", false, "replace colors nodes already have")
	f.StringVar(&opts.sizeBy, "size-by", "", "size nodes by this numeric property")
	f.StringVar(&opts.radius, "radius", "", "normalize node sizes into MIN,MAX pixels")
	f.StringSliceVar(&opts.pin, "pin", nil, "pin these node ids")

	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if opts.fromStore {
			return c.completeGraphNames(cmd, args, toComplete)
		}
		return []string{"json"}, cobra.ShellCompDirectiveFilterFileExt
	}

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, source string, opts *renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := c.config()
	if err != nil {
		return err
	}
	g, name, err := c.loadGraph(ctx, source, opts.fromStore)
	if err != nil {
		return err
	}
	popts, err := opts.pipelineOptions(cmd.Flags(), cfg, g)
	if err != nil {
		return err
	}
	popts.Logger = logger

	runner, err := c.newRunner(cmd, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var spinner *Spinner
	for _, f := range popts.Formats {
		if f == pipeline.FormatScreenshot {
			spinner = newSpinnerWithContext(ctx, "Capturing widget in headless Chrome...")
			spinner.Start()
			break
		}
	}
	result, err := runner.Execute(ctx, g, popts)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	paths := outputPaths(name, opts.output, popts.Formats)
	for _, format := range popts.Formats {
		path := paths[format]
		if err := errors.ValidatePath(path); err != nil {
			return err
		}
		if err := os.WriteFile(path, result.Artifacts[format], 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	printSuccess("Rendered %s", name)
	fmt.Println(statsLine(result.Stats.NodeCount, result.Stats.RelationshipCount, result.CacheInfo.RenderHit))
	if result.Colors != nil && !result.Colors.Exhausted {
		printDetail("colored by %s: %d values", result.Colors.Attribute, result.Colors.Distinct)
	}
	for _, format := range popts.Formats {
		printFile(paths[format])
	}
	return nil
}

// loadGraph reads source as a file, "-" for stdin, or a stored graph name.
// The returned name is used for default output paths.
func (c *CLI) loadGraph(ctx context.Context, source string, fromStore bool) (*graph.VisualizationGraph, string, error) {
	if fromStore {
		st, err := c.openStore(ctx)
		if err != nil {
			return nil, "", err
		}
		defer st.Close(ctx)
		g, err := st.Load(ctx, source)
		return g, source, err
	}
	if source == "-" {
		g, err := graph.Read(os.Stdin)
		return g, "graph", err
	}
	g, err := graph.ReadFile(source)
	if err != nil {
		return nil, "", err
	}
	return g, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)), nil
}

func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return cfg.openStore(ctx)
}

// pipelineOptions converts the flags into pipeline options. Flags left unset
// fall back to the [engine] section of the config file.
func (o *renderOpts) pipelineOptions(flags *pflag.FlagSet, cfg *Config, g *graph.VisualizationGraph) (pipeline.Options, error) {
	formats, err := pipeline.ParseFormats(o.formats)
	if err != nil {
		return pipeline.Options{}, err
	}

	bundlePath, bundleURL := o.bundle, o.bundleURL
	if bundlePath == "" && bundleURL == "" {
		bundleURL = cfg.BundleURL
	}
	var bundle []byte
	if bundleURL == "" {
		if bundle, err = cfg.readBundle(bundlePath); err != nil {
			return pipeline.Options{}, err
		}
	}

	popts := pipeline.Options{
		Formats:         formats,
		Width:           o.width,
		Height:          o.height,
		Title:           o.title,
		Config:          engineConfig(flags, o, cfg.Engine),
		DisableTooltip:  o.noTooltip,
		MaxAllowedNodes: o.maxNodes,
		Fragment:        o.fragment,
		Bundle:          bundle,
		BundleURL:       bundleURL,
		Detailed:        o.detailed,
		Scale:           o.scale,
		Refresh:         o.refresh,
	}
	if o.viewport != "" {
		w, h, err := parseViewport(o.viewport)
		if err != nil {
			return pipeline.Options{}, err
		}
		popts.Screenshot.Width, popts.Screenshot.Height = w, h
	}

	if popts.Color, err = o.colorOptions(); err != nil {
		return pipeline.Options{}, err
	}
	if o.radius != "" {
		if popts.Radius, err = parseRadius(o.radius); err != nil {
			return pipeline.Options{}, err
		}
	}
	if o.sizeBy != "" {
		if popts.Sizes, err = sizesFromProperty(g, o.sizeBy); err != nil {
			return pipeline.Options{}, err
		}
		if popts.Radius == nil {
			r := graph.DefaultRadius
			popts.Radius = &r
		}
	}
	if len(o.pin) > 0 {
		popts.Pinned = make(map[string]bool, len(o.pin))
		for _, id := range o.pin {
			popts.Pinned[id] = true
		}
	}
	return popts, nil
}

// engineConfig overlays the flags the user set onto base.
func engineConfig(flags *pflag.FlagSet, o *renderOpts, base engine.Config) engine.Config {
	cfg := base
	set := func(name string) bool { return flags != nil && flags.Changed(name) }
	if o.layout != "" {
		cfg.Layout = engine.Layout(o.layout)
	}
	if o.renderer != "" {
		cfg.Renderer = engine.Renderer(o.renderer)
	}
	if set("pan-x") {
		v := o.panX
		cfg.PanX = &v
	}
	if set("pan-y") {
		v := o.panY
		cfg.PanY = &v
	}
	if set("zoom") {
		v := o.zoom
		cfg.InitialZoom = &v
	}
	if set("min-zoom") {
		cfg.MinZoom = o.minZoom
	}
	if set("max-zoom") {
		cfg.MaxZoom = o.maxZoom
	}
	if o.noDynamicMinZoom {
		f := false
		cfg.AllowDynamicMinZoom = &f
	}
	return cfg
}

func (o *renderOpts) colorOptions() (*graph.ColorOptions, error) {
	if o.colorBy == "" && o.colorByField == "" {
		if len(o.palette) > 0 || len(o.colorMap) > 0 || o.colorSpace != "" {
			return nil, errors.New(errors.ErrCodeInvalidOption, "--palette, --color-map and --color-space need --color-by or --color-by-field")
		}
		return nil, nil
	}
	co := &graph.ColorOptions{
		Property: o.colorBy,
		Field:    o.colorByField,
		Colors:   o.palette,
		Space:    graph.ColorSpace(o.colorSpace),
		Override: o.overrideColors,
	}
	if len(o.colorMap) > 0 {
		co.ColorMap = make(map[string]string, len(o.colorMap))
		for _, pair := range o.colorMap {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || k == "" || v == "" {
				return nil, errors.New(errors.ErrCodeInvalidOption, "invalid color mapping %q (want value=color)", pair)
			}
			co.ColorMap[k] = v
		}
	}
	return co, nil
}

// parseRadius parses "MIN,MAX".
func parseRadius(s string) (*graph.RadiusRange, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidOption, "invalid radius %q (want MIN,MAX)", s)
	}
	rmin, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	rmax, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err1 != nil || err2 != nil {
		return nil, errors.New(errors.ErrCodeInvalidOption, "invalid radius %q (want MIN,MAX)", s)
	}
	r := graph.RadiusRange{Min: rmin, Max: rmax}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// parseViewport parses "WIDTHxHEIGHT".
func parseViewport(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if !ok || err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, errors.New(errors.ErrCodeInvalidOption, "invalid viewport %q (want WIDTHxHEIGHT)", s)
	}
	return w, h, nil
}

// sizesFromProperty reads a numeric node property. Nodes without it keep
// their size.
func sizesFromProperty(g *graph.VisualizationGraph, prop string) (map[string]float64, error) {
	sizes := make(map[string]float64)
	for _, n := range g.Nodes {
		v, ok := n.Properties[prop]
		if !ok || v == nil {
			continue
		}
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case int:
			f = float64(x)
		case int64:
			f = float64(x)
		default:
			return nil, errors.New(errors.ErrCodeInvalidOption, "property %s of node %s is not numeric: %v", prop, n.ID, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New(errors.ErrCodeInvalidOption, "property %s of node %s is not finite", prop, n.ID)
		}
		sizes[n.ID] = f
	}
	if len(sizes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidOption, "no node has a numeric %s property", prop)
	}
	return sizes, nil
}

// outputPaths maps each format to its output file. A single format writes
// to output as given; several formats use output as a base path.
func outputPaths(name, output string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if output != "" && len(formats) == 1 {
		paths[formats[0]] = output
		return paths
	}
	base := name
	if output != "" {
		base = strings.TrimSuffix(output, filepath.Ext(output))
	}
	counts := map[string]int{}
	for _, f := range formats {
		counts[pipeline.Extension(f)]++
	}
	sorted := append([]string(nil), formats...)
	sort.Strings(sorted)
	for _, f := range sorted {
		ext := pipeline.Extension(f)
		if f == pipeline.FormatScreenshot && counts[ext] > 1 {
			paths[f] = base + ".screenshot." + ext
			continue
		}
		paths[f] = base + "." + ext
	}
	return paths
}
