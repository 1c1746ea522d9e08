// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through package-level hook registries; the default
// implementations do nothing. A binary that wants metrics registers its own
// implementations once at startup:
//
//	func main() {
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    observability.SetWidgetHooks(&myWidgetHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Render().OnRenderStart(ctx, formats, nodeCount)
//	// ... render ...
//	observability.Render().OnRenderComplete(ctx, formats, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the render pipeline.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, formats []string, nodeCount int)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Widget Hooks
// =============================================================================

// WidgetHooks receives events from widgets and live sessions.
type WidgetHooks interface {
	// OnWidgetOpen records a constructed widget.
	OnWidgetOpen(ctx context.Context, container string, nodeCount int)

	// OnWidgetClose records a released widget.
	OnWidgetClose(ctx context.Context, container string, lifetime time.Duration)

	// OnHover records a classified hover event ("none", "node" or "edge").
	OnHover(ctx context.Context, kind string)
}

// =============================================================================
// Import Hooks
// =============================================================================

// ImportHooks receives events from graph importers.
type ImportHooks interface {
	OnImportStart(ctx context.Context, source string)
	OnImportComplete(ctx context.Context, source string, nodes, relationships int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, []string, int)                     {}
func (NoopRenderHooks) OnRenderComplete(context.Context, []string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopWidgetHooks is a no-op implementation of WidgetHooks.
type NoopWidgetHooks struct{}

func (NoopWidgetHooks) OnWidgetOpen(context.Context, string, int)            {}
func (NoopWidgetHooks) OnWidgetClose(context.Context, string, time.Duration) {}
func (NoopWidgetHooks) OnHover(context.Context, string)                      {}

// NoopImportHooks is a no-op implementation of ImportHooks.
type NoopImportHooks struct{}

func (NoopImportHooks) OnImportStart(context.Context, string) {}
func (NoopImportHooks) OnImportComplete(context.Context, string, int, int, time.Duration, error) {
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	renderHooks RenderHooks = NoopRenderHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	widgetHooks WidgetHooks = NoopWidgetHooks{}
	importHooks ImportHooks = NoopImportHooks{}
	hooksMu     sync.RWMutex
)

// SetRenderHooks registers custom render hooks.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetWidgetHooks registers custom widget hooks.
func SetWidgetHooks(h WidgetHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		widgetHooks = h
	}
}

// SetImportHooks registers custom import hooks.
func SetImportHooks(h ImportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		importHooks = h
	}
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Widget returns the registered widget hooks.
func Widget() WidgetHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return widgetHooks
}

// Import returns the registered import hooks.
func Import() ImportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return importHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
	widgetHooks = NoopWidgetHooks{}
	importHooks = NoopImportHooks{}
}
