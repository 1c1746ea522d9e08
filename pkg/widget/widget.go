// Package widget assembles an interactive graph view: it constructs an engine
// instance, attaches the standard interactions and wires the hover tooltip.
//
// A widget is acquired with [New] and released with [Widget.Close]. [Run]
// wraps both for callers that use the widget inside one scope.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nvlviz/pkg/engine"
	nverrors "github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/hover"
	"github.com/matzehuels/nvlviz/pkg/observability"
)

// Option customizes a widget.
type Option func(*options)

type options struct {
	logger    *log.Logger
	callbacks engine.Callbacks
}

// WithLogger sets the logger for diagnostics. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCallbacks forwards engine lifecycle callbacks.
func WithCallbacks(cb engine.Callbacks) Option {
	return func(o *options) { o.callbacks = cb }
}

// Widget is an engine instance with its interactions attached.
type Widget struct {
	// Engine is the underlying engine instance.
	Engine engine.Handle
	// Zoom, Pan and DragNode are the standard interaction handlers.
	Zoom     engine.Interaction
	Pan      engine.Interaction
	DragNode engine.Interaction
	// Hover and Overlay are nil when the widget has no tooltip surface.
	Hover   engine.HoverInteraction
	Overlay *hover.Overlay
	// Config is the validated configuration the engine was built with.
	Config engine.Config

	container string
	logger    *log.Logger
	opened    time.Time

	closeOnce sync.Once
	closeErr  error
}

// New constructs a widget in container.
//
// The config is validated once and sealed (telemetry disabled) before the
// engine is built. With a free layout the nodes' own coordinates are applied
// without animation right after construction. Hover wiring happens only when
// surface is non-nil; otherwise a warning is logged and the widget works
// without a tooltip. Construction failures are returned and anything already
// created is released.
func New(ctx context.Context, f engine.Factory, container string, surface hover.Surface,
	nodes []graph.Node, rels []graph.Relationship, cfg engine.Config, opts ...Option) (*Widget, error) {
	o := options{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.Sealed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h, err := f.New(ctx, container, nodes, rels, cfg, o.callbacks)
	if err != nil {
		if h != nil {
			_ = h.Destroy()
		}
		return nil, nverrors.Wrap(nverrors.ErrCodeEngine, err, "construct engine in %s", container)
	}

	w := &Widget{
		Engine:    h,
		Config:    cfg,
		container: container,
		logger:    o.logger,
		opened:    time.Now(),
	}

	if cfg.Layout == engine.LayoutFree && len(nodes) > 0 {
		if err := h.SetNodePositions(ctx, nodes, false); err != nil {
			w.release()
			return nil, nverrors.Wrap(nverrors.ErrCodeEngine, err, "apply node positions")
		}
	}

	if err := w.attach(ctx, surface); err != nil {
		w.release()
		return nil, err
	}

	observability.Widget().OnWidgetOpen(ctx, container, len(nodes))
	w.logger.Debug("widget ready", "container", container, "nodes", len(nodes), "relationships", len(rels), "layout", cfg.Layout)
	return w, nil
}

func (w *Widget) attach(ctx context.Context, surface hover.Surface) error {
	var err error
	if w.Zoom, err = w.interaction(ctx, engine.InteractionZoom); err != nil {
		return err
	}
	if w.Pan, err = w.interaction(ctx, engine.InteractionPan); err != nil {
		return err
	}
	if w.DragNode, err = w.interaction(ctx, engine.InteractionDragNode); err != nil {
		return err
	}

	if surface == nil {
		w.logger.Warn("hover tooltip disabled: no tooltip surface", "container", w.container)
		return nil
	}

	i, err := w.interaction(ctx, engine.InteractionHover)
	if err != nil {
		if i != nil {
			_ = i.Destroy()
		}
		return err
	}
	hi, ok := i.(engine.HoverInteraction)
	if !ok {
		_ = i.Destroy()
		return nverrors.New(nverrors.ErrCodeEngine, "engine hover interaction does not accept callbacks")
	}
	w.Hover = hi
	w.Overlay = hover.NewOverlay(surface)
	hi.UpdateCallback(engine.EventHover, w.onHover)
	return nil
}

func (w *Widget) interaction(ctx context.Context, kind engine.InteractionKind) (engine.Interaction, error) {
	i, err := w.Engine.Interaction(ctx, kind)
	if err != nil {
		// i, when set, may be attached; the caller keeps it for release.
		return i, nverrors.Wrap(nverrors.ErrCodeEngine, err, "attach %s interaction", kind)
	}
	return i, nil
}

func (w *Widget) onHover(element any, _ engine.Hits, _ json.RawMessage) {
	t, err := w.Overlay.Handle(element)
	if err != nil {
		w.logger.Debug("tooltip update failed", "container", w.container, "error", err)
	}
	observability.Widget().OnHover(context.Background(), t.Kind.String())
}

// Container returns the id of the element the widget is mounted in.
func (w *Widget) Container() string { return w.container }

// Close detaches the hover listener, destroys the interactions and then the
// engine. It is safe to call more than once; later calls return the first
// result.
func (w *Widget) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.release()
		observability.Widget().OnWidgetClose(context.Background(), w.container, time.Since(w.opened))
		w.logger.Debug("widget closed", "container", w.container)
	})
	return w.closeErr
}

func (w *Widget) release() error {
	var errs []error
	if w.Hover != nil {
		w.Hover.UpdateCallback(engine.EventHover, nil)
	}
	for _, i := range []engine.Interaction{w.Hover, w.DragNode, w.Pan, w.Zoom} {
		if i == nil {
			continue
		}
		if err := i.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.Engine != nil {
		if err := w.Engine.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run constructs a widget, passes it to fn and closes it when fn returns.
func Run(ctx context.Context, f engine.Factory, container string, surface hover.Surface,
	nodes []graph.Node, rels []graph.Relationship, cfg engine.Config,
	fn func(*Widget) error, opts ...Option) error {
	w, err := New(ctx, f, container, surface, nodes, rels, cfg, opts...)
	if err != nil {
		return err
	}
	runErr := fn(w)
	return errors.Join(runErr, w.Close())
}
