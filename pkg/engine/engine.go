// Package engine describes the graph visualization engine nvlviz drives.
//
// The engine itself (layout, physics, rendering, hit-testing) lives outside
// this module; in practice it is NVL running in a browser page. This package
// only fixes the contract a host needs: construct a [Handle] through a
// [Factory], attach [Interaction] handlers to it and tear it down again.
// See package live for the implementation that drives a browser over a
// websocket.
package engine

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/nvlviz/pkg/graph"
)

// InteractionKind names an interaction handler the engine provides.
type InteractionKind string

const (
	InteractionZoom     InteractionKind = "zoom"
	InteractionPan      InteractionKind = "pan"
	InteractionDragNode InteractionKind = "drag-node"
	InteractionHover    InteractionKind = "hover"
)

// EventHover is the hover interaction callback fired with the element under
// the pointer.
const EventHover = "onHover"

// Callbacks receives engine lifecycle events (for example "onLayoutDone")
// keyed by event name. Payloads are passed through undecoded.
type Callbacks map[string]func(payload json.RawMessage)

// Factory constructs engine instances.
//
// New may return a non-nil Handle together with an error when the engine
// may have been created but construction was not confirmed (cancellation,
// timeout). The caller destroys such a handle.
type Factory interface {
	New(ctx context.Context, container string, nodes []graph.Node, rels []graph.Relationship, cfg Config, cb Callbacks) (Handle, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, container string, nodes []graph.Node, rels []graph.Relationship, cfg Config, cb Callbacks) (Handle, error)

// New calls f.
func (f FactoryFunc) New(ctx context.Context, container string, nodes []graph.Node, rels []graph.Relationship, cfg Config, cb Callbacks) (Handle, error) {
	return f(ctx, container, nodes, rels, cfg, cb)
}

// Handle is a live engine instance.
type Handle interface {
	// SetNodePositions moves nodes to the coordinates they carry.
	SetNodePositions(ctx context.Context, nodes []graph.Node, animate bool) error
	// Interaction attaches an interaction handler. InteractionHover returns a
	// HoverInteraction. As with Factory.New, a non-nil Interaction returned
	// alongside an error may be attached and must be destroyed.
	Interaction(ctx context.Context, kind InteractionKind) (Interaction, error)
	// Destroy releases the instance. Further calls are undefined.
	Destroy() error
}

// Interaction is an attached interaction handler.
type Interaction interface {
	Destroy() error
}

// Hits lists every element under the pointer, topmost first.
type Hits struct {
	Nodes         []json.RawMessage `json:"nodes,omitempty"`
	Relationships []json.RawMessage `json:"relationships,omitempty"`
}

// HoverHandler receives the topmost hovered element (nil over empty canvas),
// all hits and the raw pointer event.
type HoverHandler func(element any, hits Hits, raw json.RawMessage)

// HoverInteraction reports the element under the pointer.
type HoverInteraction interface {
	Interaction
	UpdateCallback(event string, h HoverHandler)
}
