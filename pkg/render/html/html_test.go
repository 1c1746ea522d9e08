package html

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

var bundle = []byte("var NVLBase = {};")

func sample() *graph.VisualizationGraph {
	return graph.New(
		[]graph.Node{{ID: "a", Caption: "Alice"}, {ID: "<b>"}},
		[]graph.Relationship{{ID: "r1", From: "a", To: "<b>"}},
	)
}

func TestRenderStandalone(t *testing.T) {
	out, err := Render(sample(), Options{Bundle: bundle, ContainerID: "1234abcd-0000-0000-0000-000000000000"})
	if err != nil {
		t.Fatal(err)
	}
	page := string(out)

	checks := []string{
		"<!DOCTYPE html>",
		`id="1234abcd-0000-0000-0000-000000000000"`,
		`id="1234abcd-0000-0000-0000-000000000000-tooltip"`,
		"window.graph_1234abcd = nvl",
		"graph_1234abcd.saveToFile({ filename: 'graph_1234abcd.png' })",
		"graph_1234abcd.setZoom(graph_1234abcd.getScale() + 0.5)",
		"graph_1234abcd.setZoom(graph_1234abcd.getScale() - 0.5)",
		"height: 600px",
		"width: 100%",
		`"disableTelemetry":true`,
		string(bundle),
	}
	for _, c := range checks {
		if !strings.Contains(page, c) {
			t.Errorf("page missing %q", c)
		}
	}
	if strings.Contains(page, "<b>") {
		t.Error("raw identifier markup leaked into the page")
	}
}

func TestRenderFragment(t *testing.T) {
	out, err := Render(sample(), Options{Bundle: bundle, Fragment: true})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out, []byte("<!DOCTYPE")) || bytes.Contains(out, []byte("<body>")) {
		t.Error("fragment contains document markup")
	}
}

func TestRenderGeneratesUniqueContainers(t *testing.T) {
	re := regexp.MustCompile(`var tooltip = document.getElementById\("([0-9a-f-]+)-tooltip"\)`)
	a, _ := Render(sample(), Options{Bundle: bundle})
	b, _ := Render(sample(), Options{Bundle: bundle})
	ma, mb := re.FindSubmatch(a), re.FindSubmatch(b)
	if ma == nil || mb == nil {
		t.Fatal("tooltip lookup not found")
	}
	if string(ma[1]) == string(mb[1]) {
		t.Error("two renders share a container id")
	}
}

func TestRenderWithoutTooltip(t *testing.T) {
	out, err := Render(sample(), Options{Bundle: bundle, DisableTooltip: true, ContainerID: "c"})
	if err != nil {
		t.Fatal(err)
	}
	page := string(out)
	if strings.Contains(page, `id="c-tooltip"`) {
		t.Error("tooltip element rendered")
	}
	if !strings.Contains(page, "var tooltip = null;") {
		t.Error("tooltip lookup should be null")
	}
}

func TestRenderBundleURL(t *testing.T) {
	out, err := Render(sample(), Options{BundleURL: "https://cdn.example.com/nvl.js?v=1&x=2"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `<script src="https://cdn.example.com/nvl.js?v=1&amp;x=2"></script>`) {
		t.Error("bundle script tag missing or unescaped")
	}
}

func TestRenderEscapesInlineBundle(t *testing.T) {
	out, err := Render(sample(), Options{Bundle: []byte(`var s = "</script>";`)})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), `"</script>"`) {
		t.Error("inline bundle can terminate its script element")
	}
}

func TestRenderLive(t *testing.T) {
	out, err := Render(sample(), Options{Bundle: bundle, Live: &LiveOptions{SocketPath: "/graphs/x/ws"}})
	if err != nil {
		t.Fatal(err)
	}
	page := string(out)
	if !strings.Contains(page, `location.host + "/graphs/x/ws"`) {
		t.Error("socket path missing")
	}
	if strings.Contains(page, "Alice") {
		t.Error("live page should not inline graph data")
	}
}

func TestRenderErrors(t *testing.T) {
	big := graph.New(make([]graph.Node, 3), nil)
	for i := range big.Nodes {
		big.Nodes[i].ID = string(rune('a' + i))
	}
	unsupported := graph.New([]graph.Node{{ID: "a", Properties: map[string]any{"f": func() {}}}}, nil)

	tests := []struct {
		name string
		g    *graph.VisualizationGraph
		opts Options
		code errors.Code
	}{
		{"too many nodes", big, Options{Bundle: bundle, MaxAllowedNodes: 2}, errors.ErrCodeTooManyNodes},
		{"unsupported property", unsupported, Options{Bundle: bundle}, errors.ErrCodeUnsupportedField},
		{"no bundle", sample(), Options{}, errors.ErrCodeInvalidOption},
		{"bad height", sample(), Options{Bundle: bundle, Height: "600px; color: red"}, errors.ErrCodeInvalidOption},
		{"bad layout", sample(), Options{Bundle: bundle, Config: engine.Config{Layout: "spiral"}}, errors.ErrCodeInvalidOption},
		{"relative socket", sample(), Options{Bundle: bundle, Live: &LiveOptions{SocketPath: "ws"}}, errors.ErrCodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.g, tt.opts)
			if !errors.Is(err, tt.code) {
				t.Fatalf("Render() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestTooManyNodesMessage(t *testing.T) {
	g := graph.New([]graph.Node{{ID: "a"}, {ID: "b"}}, nil)
	_, err := Render(g, Options{Bundle: bundle, MaxAllowedNodes: 1})
	if !strings.Contains(errors.UserMessage(err), "Too many nodes (2) to render") {
		t.Errorf("message = %q", errors.UserMessage(err))
	}
}

func TestRendererWarning(t *testing.T) {
	nodes := make([]graph.Node, engine.CanvasNodeLimit+1)
	for i := range nodes {
		nodes[i].ID = fmt.Sprintf("n%d", i)
	}
	var buf bytes.Buffer
	_, err := Render(graph.New(nodes, nil), Options{Bundle: bundle, Logger: log.New(&buf)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "webgl") {
		t.Errorf("expected renderer warning, log = %q", buf.String())
	}
}

func TestTooltips(t *testing.T) {
	tips := Tooltips(sample())
	if tips["n:a"] != "ID: a" {
		t.Errorf("node tip = %q", tips["n:a"])
	}
	if tips["n:<b>"] != "ID: &lt;b&gt;" {
		t.Errorf("escaped tip = %q", tips["n:<b>"])
	}
	if tips["r:r1"] != "Source ID: a<br/>Target ID: &lt;b&gt;" {
		t.Errorf("relationship tip = %q", tips["r:r1"])
	}
	if _, err := json.Marshal(tips); err != nil {
		t.Fatal(err)
	}
}

func TestVarName(t *testing.T) {
	tests := map[string]string{
		"1234abcd-ef": "graph_1234abcd",
		"plain":       "graph_plain",
		"a.b-c":       "graph_a_b",
	}
	for in, want := range tests {
		if got := VarName(in); got != want {
			t.Errorf("VarName(%q) = %q, want %q", in, got, want)
		}
	}
}
