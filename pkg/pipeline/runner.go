package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nvlviz/pkg/cache"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use it so artifacts are cached the same way.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute prepares g and renders every requested format. g is not modified.
func (r *Runner) Execute(ctx context.Context, g *graph.VisualizationGraph, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Prepare
	prepStart := time.Now()
	work, report, err := r.PrepareGraph(g, opts)
	if err != nil {
		return nil, err
	}
	result.Graph = work
	result.Colors = report
	result.Stats.PrepareTime = time.Since(prepStart)
	result.Stats.NodeCount = len(work.Nodes)
	result.Stats.RelationshipCount = len(work.Relationships)

	data, err := graph.Marshal(work)
	if err != nil {
		return nil, err
	}
	result.GraphHash = cache.Hash(data)

	// Stage 2: Render
	renderStart := time.Now()
	hooks := observability.Render()
	hooks.OnRenderStart(ctx, opts.Formats, len(work.Nodes))
	artifacts, info, err := r.RenderWithCacheInfo(ctx, work, result.GraphHash, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), err)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.CacheInfo = info
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"nodes", result.Stats.NodeCount,
		"cached", len(info.Hits),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// PrepareGraph applies the styling options to a copy of g. The returned
// report is nil unless coloring was requested.
func (r *Runner) PrepareGraph(g *graph.VisualizationGraph, opts Options) (*graph.VisualizationGraph, *graph.ColorReport, error) {
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}
	work := graph.New(
		append([]graph.Node(nil), g.Nodes...),
		append([]graph.Relationship(nil), g.Relationships...),
	)

	var report *graph.ColorReport
	if opts.Color != nil {
		rep, err := work.ColorNodes(*opts.Color)
		if err != nil {
			return nil, nil, err
		}
		if w := rep.Warning(); w != "" {
			r.Logger.Warn(w)
		}
		report = &rep
	}
	if opts.Sizes != nil || opts.Radius != nil {
		if err := work.ResizeNodes(opts.Sizes, opts.Radius); err != nil {
			return nil, nil, err
		}
	}
	if len(opts.Pinned) > 0 {
		work.TogglePinned(opts.Pinned)
	}
	return work, report, nil
}

// RenderWithCacheInfo renders every format of opts, serving each from the
// cache when possible. graphHash identifies the prepared graph.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g *graph.VisualizationGraph, graphHash string, opts Options) (map[string][]byte, CacheInfo, error) {
	r.applyLogger(&opts)
	hooks := observability.Cache()

	var info CacheInfo
	artifacts := make(map[string][]byte, len(opts.Formats))
	var missing []string

	for _, format := range opts.Formats {
		if opts.Refresh {
			missing = append(missing, format)
			continue
		}
		key := r.Keyer.ArtifactKey(graphHash, opts.ArtifactKeyOpts(format))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Debug("cache read failed", "format", format, "error", err)
		}
		if err == nil && hit {
			hooks.OnCacheHit(ctx, "artifact")
			artifacts[format] = data
			info.Hits = append(info.Hits, format)
			continue
		}
		hooks.OnCacheMiss(ctx, "artifact")
		missing = append(missing, format)
	}
	info.RenderHit = len(missing) == 0 && len(opts.Formats) > 0

	if len(missing) == 0 {
		return artifacts, info, nil
	}

	sub := opts
	sub.Formats = missing
	rendered, err := Render(ctx, g, sub)
	if err != nil {
		return nil, info, err
	}
	for format, data := range rendered {
		artifacts[format] = data
		key := r.Keyer.ArtifactKey(graphHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
			r.Logger.Debug("cache write failed", "format", format, "error", err)
			continue
		}
		hooks.OnCacheSet(ctx, "artifact", len(data))
	}
	return artifacts, info, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func (r Result) String() string {
	return fmt.Sprintf("%d nodes, %d relationships, %d artifacts", r.Stats.NodeCount, r.Stats.RelationshipCount, len(r.Artifacts))
}
