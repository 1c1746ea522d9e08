package live

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

func testGraph() *graph.VisualizationGraph {
	x, y := 1.0, 2.0
	return graph.New(
		[]graph.Node{{ID: "a", X: &x, Y: &y}, {ID: "b"}},
		[]graph.Relationship{{ID: "r", From: "a", To: "b"}},
	)
}

// page is the browser side of a session.
type page struct {
	t *testing.T
	c *websocket.Conn
}

type harness struct {
	page   *page
	cancel context.CancelFunc
	result chan error
}

func start(t *testing.T, cfg engine.Config, opts ...Option) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			result <- err
			return
		}
		result <- NewSession(conn, opts...).Serve(ctx, testGraph(), cfg)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return &harness{page: &page{t: t, c: c}, cancel: cancel, result: result}
}

func (p *page) send(v any) {
	p.t.Helper()
	if err := p.c.WriteJSON(v); err != nil {
		p.t.Fatalf("page send: %v", err)
	}
}

func (p *page) next() Command {
	p.t.Helper()
	_ = p.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var cmd Command
	if err := p.c.ReadJSON(&cmd); err != nil {
		p.t.Fatalf("page read: %v", err)
	}
	return cmd
}

// expect reads the next command, checks its type and acknowledges it.
func (p *page) expect(typ string) Command {
	p.t.Helper()
	cmd := p.next()
	if cmd.Type != typ {
		p.t.Fatalf("command = %s %s, want %s", cmd.Type, cmd.Kind, typ)
	}
	p.send(map[string]any{"type": evAck, "seq": cmd.Seq})
	return cmd
}

func (p *page) expectKind(typ string, kind engine.InteractionKind) {
	p.t.Helper()
	if cmd := p.expect(typ); cmd.Kind != kind {
		p.t.Fatalf("%s kind = %s, want %s", typ, cmd.Kind, kind)
	}
}

func (p *page) expectOverlay() Command {
	p.t.Helper()
	return p.expect(cmdOverlay)
}

func (p *page) hover(element string) {
	p.t.Helper()
	p.send(json.RawMessage(`{"type":"hover","element":` + element + `,"hits":{}}`))
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func (p *page) open(tooltip bool) Command {
	p.t.Helper()
	p.send(map[string]any{"type": evReady, "tooltip": tooltip})
	init := p.expect(cmdInit)
	return init
}

func (p *page) attachStandard() {
	p.t.Helper()
	p.expectKind(cmdAttach, engine.InteractionZoom)
	p.expectKind(cmdAttach, engine.InteractionPan)
	p.expectKind(cmdAttach, engine.InteractionDragNode)
}

func TestServeHoverRoundTrip(t *testing.T) {
	h := start(t, engine.Config{}, WithTimeout(2*time.Second))
	p := h.page

	init := p.open(true)
	if init.Options == nil || !init.Options.DisableTelemetry {
		t.Fatal("engine options must disable telemetry")
	}
	if len(init.Nodes) != 2 || len(init.Relationships) != 1 {
		t.Fatalf("init carried %d nodes, %d relationships", len(init.Nodes), len(init.Relationships))
	}
	p.attachStandard()
	p.expectKind(cmdAttach, engine.InteractionHover)

	p.hover(`{"id":"a"}`)
	if cmd := p.expectOverlay(); cmd.Content == nil || *cmd.Content != "ID: a" || cmd.Visible != nil {
		t.Fatalf("first overlay = %+v", cmd)
	}
	if cmd := p.expectOverlay(); cmd.Visible == nil || !*cmd.Visible {
		t.Fatalf("second overlay = %+v", cmd)
	}

	p.hover(`{"id":"r","from":"a","to":"b"}`)
	if cmd := p.expectOverlay(); cmd.Content == nil || *cmd.Content != "Source ID: a<br/>Target ID: b" {
		t.Fatalf("edge overlay = %+v", cmd)
	}

	p.hover(`null`)
	if cmd := p.expectOverlay(); cmd.Content == nil || *cmd.Content != "" {
		t.Fatalf("clear overlay = %+v", cmd)
	}
	if cmd := p.expectOverlay(); cmd.Visible == nil || *cmd.Visible {
		t.Fatalf("hide overlay = %+v", cmd)
	}

	h.cancel()
	p.expectKind(cmdDetach, engine.InteractionHover)
	p.expectKind(cmdDetach, engine.InteractionDragNode)
	p.expectKind(cmdDetach, engine.InteractionPan)
	p.expectKind(cmdDetach, engine.InteractionZoom)
	p.expect(cmdDestroy)

	if err := h.wait(t); err != nil {
		t.Fatalf("Serve() = %v", err)
	}
}

func TestServeHoverDuringAttach(t *testing.T) {
	h := start(t, engine.Config{}, WithTimeout(2*time.Second))
	p := h.page

	p.open(true)
	p.attachStandard()

	// The page forwards hovers as soon as it registers the listener, before
	// the attach is acknowledged.
	cmd := p.next()
	if cmd.Type != cmdAttach || cmd.Kind != engine.InteractionHover {
		t.Fatalf("command = %s %s, want hover attach", cmd.Type, cmd.Kind)
	}
	p.hover(`{"id":"a"}`)
	p.send(map[string]any{"type": evAck, "seq": cmd.Seq})

	if cmd := p.expectOverlay(); cmd.Content == nil || *cmd.Content != "ID: a" {
		t.Fatalf("overlay = %+v, want the hover sent before the ack", cmd)
	}
	if cmd := p.expectOverlay(); cmd.Visible == nil || !*cmd.Visible {
		t.Fatalf("overlay = %+v, want visible", cmd)
	}

	p.hover(`{"from":"a","to":"b"}`)
	if cmd := p.expectOverlay(); cmd.Content == nil || *cmd.Content != "Source ID: a<br/>Target ID: b" {
		t.Fatalf("overlay = %+v", cmd)
	}
	h.cancel()
}

func TestServeCancelDuringAttach(t *testing.T) {
	h := start(t, engine.Config{}, WithTimeout(5*time.Second))
	p := h.page

	p.open(false)
	p.expectKind(cmdAttach, engine.InteractionZoom)
	p.expectKind(cmdAttach, engine.InteractionPan)

	// The page attaches drag-node but the ack never arrives.
	if cmd := p.next(); cmd.Type != cmdAttach || cmd.Kind != engine.InteractionDragNode {
		t.Fatalf("command = %s %s, want drag-node attach", cmd.Type, cmd.Kind)
	}
	h.cancel()

	p.expectKind(cmdDetach, engine.InteractionDragNode)
	p.expectKind(cmdDetach, engine.InteractionPan)
	p.expectKind(cmdDetach, engine.InteractionZoom)
	p.expect(cmdDestroy)

	if err := h.wait(t); err != nil {
		t.Fatalf("Serve() = %v, want nil on cancellation", err)
	}
}

func TestServeCancelDuringInit(t *testing.T) {
	h := start(t, engine.Config{})
	p := h.page

	p.send(map[string]any{"type": evReady})
	if cmd := p.next(); cmd.Type != cmdInit {
		t.Fatalf("command = %s, want init", cmd.Type)
	}
	h.cancel()

	// The engine may exist in the page, so it is destroyed.
	p.expect(cmdDestroy)
	if err := h.wait(t); err != nil {
		t.Fatalf("Serve() = %v, want nil on cancellation", err)
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		cancel   bool
		wantCode errors.Code
		wantCtx  error
	}{
		{"cancelled", time.Minute, true, "", context.Canceled},
		{"unacknowledged", 20 * time.Millisecond, false, errors.ErrCodeTimeout, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			result := make(chan error, 1)
			upgrader := websocket.Upgrader{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					result <- err
					return
				}
				s := NewSession(conn, WithTimeout(tt.timeout))
				defer s.conn.Close()
				go s.readLoop()
				result <- s.call(ctx, Command{Type: cmdInit})
			}))
			defer srv.Close()

			c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer c.Close()
			p := &page{t: t, c: c}
			p.next()
			if tt.cancel {
				cancel()
			}

			var got error
			select {
			case got = <-result:
			case <-time.After(5 * time.Second):
				t.Fatal("call did not return")
			}
			if !stderrors.Is(got, tt.wantCtx) {
				t.Errorf("call() = %v, want %v in chain", got, tt.wantCtx)
			}
			if code := errors.GetCode(got); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if !unacknowledged(got) {
				t.Errorf("unacknowledged(%v) = false", got)
			}
		})
	}
}

func TestServeWithoutTooltip(t *testing.T) {
	h := start(t, engine.Config{})
	p := h.page

	p.open(false)
	p.attachStandard()

	h.cancel()
	p.expectKind(cmdDetach, engine.InteractionDragNode)
	p.expectKind(cmdDetach, engine.InteractionPan)
	p.expectKind(cmdDetach, engine.InteractionZoom)
	p.expect(cmdDestroy)

	if err := h.wait(t); err != nil {
		t.Fatalf("Serve() = %v", err)
	}
}

func TestServeFreeLayout(t *testing.T) {
	h := start(t, engine.Config{Layout: engine.LayoutFree})
	p := h.page

	p.open(false)
	cmd := p.expect(cmdSetNodePositions)
	if cmd.Animate || len(cmd.Nodes) != 2 || cmd.Nodes[0].X == nil || *cmd.Nodes[0].X != 1 {
		t.Fatalf("setNodePositions = %+v", cmd)
	}
	p.attachStandard()
	h.cancel()
}

func TestServeCallbacks(t *testing.T) {
	got := make(chan json.RawMessage, 1)
	h := start(t, engine.Config{}, WithCallbacks(engine.Callbacks{
		"onLayoutDone": func(payload json.RawMessage) { got <- payload },
	}))
	p := h.page

	init := p.open(false)
	if len(init.Callbacks) != 1 || init.Callbacks[0] != "onLayoutDone" {
		t.Fatalf("init callbacks = %v", init.Callbacks)
	}
	p.attachStandard()

	p.send(map[string]any{"type": evCallback, "name": "onLayoutDone", "payload": map[string]int{"n": 2}})
	select {
	case payload := <-got:
		if string(payload) != `{"n":2}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback not delivered")
	}
	h.cancel()
}

func TestServePageDisconnect(t *testing.T) {
	h := start(t, engine.Config{})
	p := h.page

	p.open(false)
	p.attachStandard()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := p.c.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatal(err)
	}
	if err := h.wait(t); err != nil {
		t.Fatalf("Serve() = %v, want nil on normal closure", err)
	}
}

func TestServeRejectedInit(t *testing.T) {
	h := start(t, engine.Config{})
	p := h.page

	p.send(map[string]any{"type": evReady})
	cmd := p.next()
	p.send(map[string]any{"type": evAck, "seq": cmd.Seq, "error": "NVLBase is not defined"})

	err := h.wait(t)
	if !errors.Is(err, errors.ErrCodeEngine) {
		t.Fatalf("Serve() = %v, want engine error", err)
	}
	if !strings.Contains(err.Error(), "NVLBase is not defined") {
		t.Errorf("error %q lost the page message", err)
	}
}

func TestServeAckTimeout(t *testing.T) {
	h := start(t, engine.Config{}, WithTimeout(50*time.Millisecond))
	p := h.page

	p.send(map[string]any{"type": evReady})
	p.next()

	err := h.wait(t)
	if !errors.Is(err, errors.ErrCodeEngine) || !strings.Contains(err.Error(), "init not acknowledged") {
		t.Fatalf("Serve() = %v, want unacknowledged init", err)
	}
}

func TestServeInvalidConfig(t *testing.T) {
	h := start(t, engine.Config{Renderer: "svg"})
	h.page.send(map[string]any{"type": evReady})

	if err := h.wait(t); !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Fatalf("Serve() = %v, want invalid option", err)
	}
}
