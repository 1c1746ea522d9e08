package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/nvlviz/pkg/cache"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/pipeline"
	"github.com/matzehuels/nvlviz/pkg/store"
)

const bundle = "var NVLBase = {};"

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := graph.New(
		[]graph.Node{{ID: "a", Caption: "Alice"}, {ID: "b"}},
		[]graph.Relationship{{ID: "r", From: "a", To: "b"}},
	)
	if err := st.Save(t.Context(), "demo", g); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(st, Options{Bundle: []byte(bundle), SessionTimeout: 2 * time.Second}))
	t.Cleanup(srv.Close)
	return srv, st
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}
}

func TestBundle(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+BundlePath)
	if resp.StatusCode != http.StatusOK || body != bundle {
		t.Fatalf("bundle = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestListGraphs(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/api/graphs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Graphs []store.Info `json:"graphs"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Graphs) != 1 || out.Graphs[0].Name != "demo" || out.Graphs[0].Nodes != 2 {
		t.Fatalf("graphs = %+v", out.Graphs)
	}
}

func TestGetPutDeleteGraph(t *testing.T) {
	srv, st := newTestServer(t)

	body := `{"nodes":[{"id":1},{"id":2}],"relationships":[{"source":1,"target":2}]}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/graphs/numbers", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	resp, got := get(t, srv.URL+"/api/graphs/numbers")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	g, err := graph.Read(strings.NewReader(got))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || g.Relationships[0].From != "1" {
		t.Fatalf("graph = %+v", g)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/graphs/numbers", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	if _, err := st.Load(t.Context(), "numbers"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("Load after delete = %v", err)
	}
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   errors.Code
	}{
		{"missing graph", http.MethodGet, "/api/graphs/nope", "", http.StatusNotFound, errors.ErrCodeNotFound},
		{"missing page", http.MethodGet, "/graphs/nope/static", "", http.StatusNotFound, errors.ErrCodeNotFound},
		{"invalid name", http.MethodGet, "/api/graphs/..x", "", http.StatusBadRequest, errors.ErrCodeInvalidName},
		{"dangling relationship", http.MethodPut, "/api/graphs/bad", `{"nodes":[{"id":"a"}],"relationships":[{"from":"a","to":"z"}]}`, http.StatusBadRequest, errors.ErrCodeInvalidGraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var out errorBody
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", out.Error.Code, tt.code)
			}
		})
	}
}

func TestStaticPage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/graphs/demo/static")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{`<script src="/bundle.js">`, "Alice", "<title>demo</title>"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestLivePage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/graphs/demo")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"/graphs/demo/ws"`) || strings.Contains(body, "Alice") {
		t.Error("live page should reference the socket and carry no graph data")
	}
	if !strings.Contains(body, `<div id="demo"`) {
		t.Error("live page container should be named after the graph")
	}
}

func TestLiveSession(t *testing.T) {
	srv, _ := newTestServer(t)
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/graphs/demo/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.WriteJSON(map[string]any{"type": "ready"}); err != nil {
		t.Fatal(err)
	}
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var cmd struct {
		Type  string       `json:"type"`
		Seq   uint64       `json:"seq"`
		Nodes []graph.Node `json:"nodes"`
	}
	if err := c.ReadJSON(&cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Type != "init" || len(cmd.Nodes) != 2 {
		t.Fatalf("first command = %+v", cmd)
	}
}

func TestSessionMissingGraph(t *testing.T) {
	srv, _ := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/graphs/nope/ws", nil)
	if err == nil {
		t.Fatal("dial succeeded for a missing graph")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v", resp)
	}
}

func TestExport(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := graph.New([]graph.Node{{ID: "a", Caption: "Alice"}, {ID: "b"}}, []graph.Relationship{{ID: "r", From: "a", To: "b"}})
	if err := st.Save(t.Context(), "demo", g); err != nil {
		t.Fatal(err)
	}
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(st, Options{Runner: pipeline.NewRunner(fc, nil, nil)}))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/graphs/demo/export/dot")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export dot = %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(body, "digraph") || !strings.Contains(body, "Alice") {
		t.Errorf("dot body = %q", body)
	}
	if got := resp.Header.Get("X-Cache"); got != "miss" {
		t.Errorf("first X-Cache = %q, want miss", got)
	}

	resp, _ = get(t, srv.URL+"/graphs/demo/export/dot")
	if got := resp.Header.Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}

	resp, body = get(t, srv.URL+"/graphs/demo/export/json")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"nodes"`) {
		t.Errorf("export json = %d %s", resp.StatusCode, body)
	}
}

func TestExportErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		path   string
		status int
		code   errors.Code
	}{
		{"/graphs/demo/export/gif", http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"/graphs/demo/export/html", http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"/graphs/missing/export/svg", http.StatusNotFound, errors.ErrCodeNotFound},
		{"/graphs/demo/export/png?scale=-1", http.StatusBadRequest, errors.ErrCodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			var eb errorBody
			if err := json.Unmarshal([]byte(body), &eb); err != nil {
				t.Fatal(err)
			}
			if eb.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", eb.Error.Code, tt.code)
			}
		})
	}
}
