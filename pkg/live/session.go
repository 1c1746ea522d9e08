package live

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/hover"
	"github.com/matzehuels/nvlviz/pkg/widget"
)

// DefaultTimeout bounds how long a command may wait for its acknowledgement.
const DefaultTimeout = 10 * time.Second

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout sets the acknowledgement timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithContainer sets the container id reported by the widget.
func WithContainer(id string) Option {
	return func(s *Session) { s.container = id }
}

// WithCallbacks forwards engine lifecycle callbacks fired in the page.
func WithCallbacks(cb engine.Callbacks) Option {
	return func(s *Session) { s.callbacks = cb }
}

// WithOpen registers fn to run once the widget is ready. Serve keeps the
// session alive while fn runs.
func WithOpen(fn func(*widget.Widget)) Option {
	return func(s *Session) { s.onOpen = fn }
}

type inbound struct {
	ev  Event
	raw json.RawMessage
}

// Session serves one page connection. A Session is single use.
type Session struct {
	conn      *Conn
	logger    *log.Logger
	timeout   time.Duration
	container string
	callbacks engine.Callbacks
	onOpen    func(*widget.Widget)

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan error
	onHover engine.HoverHandler
	pageCB  engine.Callbacks
	queue   []inbound
	// held is the latest hover that arrived before a handler was installed.
	held *inbound

	wake    chan struct{}
	ready   chan Event
	done    chan struct{}
	readErr error
}

// NewSession wraps an upgraded websocket connection.
func NewSession(c *websocket.Conn, opts ...Option) *Session {
	s := &Session{
		conn:      NewConn(c),
		logger:    log.New(io.Discard),
		timeout:   DefaultTimeout,
		container: "nvlviz",
		pending:   make(map[uint64]chan error),
		ready:     make(chan Event, 1),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve waits for the page to announce itself, builds a widget for g on it
// and keeps it alive until the page disconnects or ctx is done. The
// connection is closed on return. A page that disconnects normally and a
// ctx that ends, even during construction, are not errors.
func (s *Session) Serve(ctx context.Context, g *graph.VisualizationGraph, cfg engine.Config) error {
	defer s.conn.Close()
	go s.readLoop()
	go s.dispatch()

	var hello Event
	select {
	case hello = <-s.ready:
	case <-s.done:
		return s.disconnectErr()
	case <-ctx.Done():
		return nil
	}

	var surface hover.Surface
	if hello.Tooltip {
		surface = &remoteSurface{s: s}
	}

	w, err := widget.New(ctx, s, s.container, surface, g.Nodes, g.Relationships, cfg,
		widget.WithLogger(s.logger), widget.WithCallbacks(s.callbacks))
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("live widget construction cancelled", "container", s.container, "error", err)
			return nil
		}
		return err
	}
	s.logger.Debug("live widget open", "container", s.container)
	if s.onOpen != nil {
		s.onOpen(w)
	}

	select {
	case <-s.done:
		// The page is gone; release locally without waiting on acks.
		_ = w.Close()
		return s.disconnectErr()
	case <-ctx.Done():
		return w.Close()
	}
}

func (s *Session) disconnectErr() error {
	if websocket.IsCloseError(s.readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return errors.Wrap(errors.ErrCodeNetwork, s.readErr, "page connection lost")
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = err
			s.failPending(err)
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("ignoring malformed page message", "error", err)
			continue
		}
		switch ev.Type {
		case evAck:
			s.resolve(ev.Seq, ev.Error)
		case evReady:
			select {
			case s.ready <- ev:
			default:
			}
		case evHover, evCallback:
			s.enqueue(inbound{ev: ev, raw: data})
		default:
			s.logger.Debug("ignoring page message", "type", ev.Type)
		}
	}
}

// enqueue never blocks: the read loop must keep delivering acks while a
// handler waits on one.
func (s *Session) enqueue(in inbound) {
	s.mu.Lock()
	s.queue = append(s.queue, in)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch runs handlers in arrival order outside the read loop so they may
// issue commands.
func (s *Session) dispatch() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			in := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.handle(in)
		}
	}
}

func (s *Session) handle(in inbound) {
	s.mu.Lock()
	onHover, cb := s.onHover, s.pageCB
	if in.ev.Type == evHover && onHover == nil {
		// Hovers can precede the attach ack. Keep the latest for setHoverHandler.
		s.held = &in
	}
	s.mu.Unlock()

	switch in.ev.Type {
	case evHover:
		if onHover != nil {
			onHover(in.ev.Element, in.ev.Hits, in.raw)
		}
	case evCallback:
		if fn := cb[in.ev.Name]; fn != nil {
			fn(in.ev.Payload)
		}
	}
}

func (s *Session) resolve(seq uint64, msg string) {
	s.mu.Lock()
	ch, ok := s.pending[seq]
	delete(s.pending, seq)
	s.mu.Unlock()
	if !ok {
		return
	}
	if msg != "" {
		ch <- errors.New(errors.ErrCodeEngine, "page rejected command: %s", msg)
		return
	}
	ch <- nil
}

func (s *Session) failPending(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for seq, ch := range s.pending {
		ch <- errors.Wrap(errors.ErrCodeNetwork, cause, "page connection lost")
		delete(s.pending, seq)
	}
}

// setHoverHandler installs fn and replays a held hover ahead of anything
// queued after it.
func (s *Session) setHoverHandler(fn engine.HoverHandler) {
	s.mu.Lock()
	s.onHover = fn
	held := s.held
	s.held = nil
	if fn != nil && held != nil {
		s.queue = append([]inbound{*held}, s.queue...)
	}
	s.mu.Unlock()
	if fn != nil && held != nil {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// unacknowledged reports whether err means a sent command may have taken
// effect in the page without being confirmed.
func unacknowledged(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// call sends cmd and waits for the page to acknowledge it. Cancellation of
// ctx is reported as context.Canceled; only the ack timeout is a TIMEOUT.
func (s *Session) call(ctx context.Context, cmd Command) error {
	select {
	case <-s.done:
		return errors.Wrap(errors.ErrCodeNetwork, s.readErr, "page connection lost")
	default:
	}

	cmd.Seq = s.seq.Add(1)
	ch := make(chan error, 1)
	s.mu.Lock()
	s.pending[cmd.Seq] = ch
	s.mu.Unlock()

	if err := s.conn.WriteJSON(cmd); err != nil {
		s.forget(cmd.Seq)
		return errors.Wrap(errors.ErrCodeNetwork, err, "send %s", cmd.Type)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()
	select {
	case err := <-ch:
		return err
	case <-s.done:
		select {
		case err := <-ch:
			return err
		default:
		}
		s.forget(cmd.Seq)
		return errors.Wrap(errors.ErrCodeNetwork, s.readErr, "page connection lost")
	case <-ctx.Done():
		select {
		case err := <-ch:
			return err
		default:
		}
		s.forget(cmd.Seq)
		if err := parent.Err(); err != nil {
			return fmt.Errorf("%s: %w", cmd.Type, err)
		}
		return errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "%s not acknowledged", cmd.Type)
	}
}

func (s *Session) forget(seq uint64) {
	s.mu.Lock()
	delete(s.pending, seq)
	s.mu.Unlock()
}

// New implements engine.Factory by initialising the engine in the page.
func (s *Session) New(ctx context.Context, container string, nodes []graph.Node, rels []graph.Relationship,
	cfg engine.Config, cb engine.Callbacks) (engine.Handle, error) {
	names := make([]string, 0, len(cb))
	for name := range cb {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	s.pageCB = cb
	s.mu.Unlock()

	err := s.call(ctx, Command{
		Type:          cmdInit,
		Nodes:         nodes,
		Relationships: rels,
		Options:       &cfg,
		Callbacks:     names,
	})
	if err != nil {
		if unacknowledged(err) {
			return &remoteEngine{s: s}, err
		}
		return nil, err
	}
	return &remoteEngine{s: s}, nil
}

type remoteEngine struct {
	s *Session
}

func (e *remoteEngine) SetNodePositions(ctx context.Context, nodes []graph.Node, animate bool) error {
	return e.s.call(ctx, Command{Type: cmdSetNodePositions, Nodes: nodes, Animate: animate})
}

func (e *remoteEngine) Interaction(ctx context.Context, kind engine.InteractionKind) (engine.Interaction, error) {
	base := &remoteInteraction{s: e.s, kind: kind}
	var i engine.Interaction = base
	if kind == engine.InteractionHover {
		i = &remoteHover{remoteInteraction: base}
	}
	if err := e.s.call(ctx, Command{Type: cmdAttach, Kind: kind}); err != nil {
		if unacknowledged(err) {
			return i, err
		}
		return nil, err
	}
	return i, nil
}

func (e *remoteEngine) Destroy() error {
	return e.s.call(context.Background(), Command{Type: cmdDestroy})
}

type remoteInteraction struct {
	s    *Session
	kind engine.InteractionKind
}

func (i *remoteInteraction) Destroy() error {
	return i.s.call(context.Background(), Command{Type: cmdDetach, Kind: i.kind})
}

type remoteHover struct {
	*remoteInteraction
}

func (h *remoteHover) UpdateCallback(event string, fn engine.HoverHandler) {
	if event != engine.EventHover {
		return
	}
	h.s.setHoverHandler(fn)
}

// remoteSurface is the page's tooltip element.
type remoteSurface struct {
	s *Session
}

func (r *remoteSurface) SetContent(markup string) error {
	return r.s.call(context.Background(), Command{Type: cmdOverlay, Content: &markup})
}

func (r *remoteSurface) SetVisible(visible bool) error {
	return r.s.call(context.Background(), Command{Type: cmdOverlay, Visible: &visible})
}
