package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/store"
)

// isolate points every XDG directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, env := range []string{"XDG_CONFIG_HOME", "XDG_CACHE_HOME", "XDG_DATA_HOME"} {
		t.Setenv(env, filepath.Join(root, strings.ToLower(env)))
	}
	t.Setenv("NEO4J_PASSWORD", "")
	return root
}

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestXDGDirs(t *testing.T) {
	root := isolate(t)
	tests := []struct {
		fn   func() (string, error)
		want string
	}{
		{cacheDir, filepath.Join(root, "xdg_cache_home", appName)},
		{configDir, filepath.Join(root, "xdg_config_home", appName)},
		{dataDir, filepath.Join(root, "xdg_data_home", appName)},
	}
	for _, tt := range tests {
		got, err := tt.fn()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("dir = %q, want %q", got, tt.want)
		}
	}
}

func TestXDGDirsFallBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
	dir, err = dataDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".local", "share", appName); dir != want {
		t.Errorf("dataDir() = %q, want %q", dir, want)
	}
}

func TestLoadConfig(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("missing default config should not fail: %v", err)
	}
	if cfg.Store.Backend != backendFile || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults = %+v", cfg)
	}

	path := writeFile(t, filepath.Join(t.TempDir(), "config.toml"), `
bundle = "/opt/nvl/index.js"

[engine]
layout = "hierarchical"
renderer = "webgl"
initial_zoom = 1.5

[neo4j]
uri = "neo4j://localhost:7687"
username = "neo4j"

[cache]
backend = "redis"
redis_addr = "localhost:6379"
prefix = "nvlviz:test:"

[server]
session_timeout = "15s"
max_allowed_nodes = 500
`)
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Bundle != "/opt/nvl/index.js" {
		t.Errorf("Bundle = %q", cfg.Bundle)
	}
	if cfg.Engine.Layout != engine.LayoutHierarchical || cfg.Engine.Renderer != engine.RendererWebGL {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.InitialZoom == nil || *cfg.Engine.InitialZoom != 1.5 {
		t.Errorf("InitialZoom = %v", cfg.Engine.InitialZoom)
	}
	if cfg.Neo4j.URI != "neo4j://localhost:7687" || cfg.Neo4j.Username != "neo4j" {
		t.Errorf("Neo4j = %+v", cfg.Neo4j)
	}
	if cfg.Cache.Backend != backendRedis || cfg.Cache.Prefix != "nvlviz:test:" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Server.SessionTimeout.Duration != 15*time.Second || cfg.Server.MaxAllowedNodes != 500 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	// Unset sections keep their defaults.
	if cfg.Store.Backend != backendFile || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{"syntax", "bundle = ", errors.ErrCodeInvalidOption},
		{"unknown key", "colour = \"red\"\n", errors.ErrCodeInvalidOption},
		{"unknown store", "[store]\nbackend = \"s3\"\n", errors.ErrCodeInvalidOption},
		{"mongo without uri", "[store]\nbackend = \"mongo\"\n", errors.ErrCodeInvalidOption},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n", errors.ErrCodeInvalidOption},
		{"both bundles", "bundle = \"a.js\"\nbundle_url = \"https://x/b.js\"\n", errors.ErrCodeInvalidOption},
		{"bad bundle url", "bundle_url = \"ftp://x/b.js\"\n", errors.ErrCodeInvalidInput},
		{"bad engine", "[engine]\nrenderer = \"svg\"\n", errors.ErrCodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".toml"), tt.content)
			_, err := loadConfig(path)
			if !errors.Is(err, tt.code) {
				t.Errorf("loadConfig() = %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("explicit missing config = %v, want FileNotFound", err)
	}
}

func TestRenderOptions(t *testing.T) {
	dir := t.TempDir()
	bundle := writeFile(t, filepath.Join(dir, "nvl.js"), "window.NVL = 1;")
	g := graph.New([]graph.Node{
		{ID: "a", Properties: map[string]any{"score": int64(2)}},
		{ID: "b", Properties: map[string]any{"score": 4.5}},
		{ID: "c"},
	}, nil)

	o := renderOpts{
		formats:  "html,svg",
		bundle:   bundle,
		layout:   "grid",
		zoom:     2,
		colorBy:  "kind",
		colorMap: []string{"person=red", "company=#00ff00"},
		sizeBy:   "score",
		pin:      []string{"a"},
		viewport: "800x600",
		scale:    3,
	}
	flags := pflag.NewFlagSet("render", pflag.ContinueOnError)
	flags.Float64Var(&o.zoom, "zoom", 0, "")
	if err := flags.Parse([]string{"--zoom=2"}); err != nil {
		t.Fatal(err)
	}

	popts, err := o.pipelineOptions(flags, defaultConfig(), g)
	if err != nil {
		t.Fatalf("pipelineOptions: %v", err)
	}
	if len(popts.Formats) != 2 || string(popts.Bundle) != "window.NVL = 1;" {
		t.Errorf("formats/bundle = %v / %q", popts.Formats, popts.Bundle)
	}
	if popts.Config.Layout != engine.LayoutGrid {
		t.Errorf("Layout = %q", popts.Config.Layout)
	}
	if popts.Config.InitialZoom == nil || *popts.Config.InitialZoom != 2 {
		t.Errorf("InitialZoom = %v", popts.Config.InitialZoom)
	}
	if popts.Config.PanX != nil {
		t.Error("unset pan-x flag should leave PanX nil")
	}
	if popts.Color == nil || popts.Color.Property != "kind" || popts.Color.ColorMap["company"] != "#00ff00" {
		t.Errorf("Color = %+v", popts.Color)
	}
	if popts.Sizes["a"] != 2 || popts.Sizes["b"] != 4.5 || len(popts.Sizes) != 2 {
		t.Errorf("Sizes = %v", popts.Sizes)
	}
	if popts.Radius == nil || *popts.Radius != graph.DefaultRadius {
		t.Errorf("Radius = %v, want default", popts.Radius)
	}
	if !popts.Pinned["a"] {
		t.Errorf("Pinned = %v", popts.Pinned)
	}
	if popts.Screenshot.Width != 800 || popts.Screenshot.Height != 600 || popts.Scale != 3 {
		t.Errorf("viewport/scale = %dx%d %g", popts.Screenshot.Width, popts.Screenshot.Height, popts.Scale)
	}
}

func TestRenderOptionsErrors(t *testing.T) {
	g := graph.New([]graph.Node{{ID: "a", Properties: map[string]any{"name": "x"}}}, nil)
	tests := []struct {
		name string
		opts renderOpts
		code errors.Code
	}{
		{"bad format", renderOpts{formats: "gif"}, errors.ErrCodeInvalidFormat},
		{"missing bundle", renderOpts{formats: "html", bundle: "/nonexistent/nvl.js"}, errors.ErrCodeFileNotFound},
		{"palette without attribute", renderOpts{formats: "json", palette: []string{"red"}}, errors.ErrCodeInvalidOption},
		{"bad color map", renderOpts{formats: "json", colorBy: "x", colorMap: []string{"novalue"}}, errors.ErrCodeInvalidOption},
		{"non-numeric size", renderOpts{formats: "json", sizeBy: "name"}, errors.ErrCodeInvalidOption},
		{"missing size property", renderOpts{formats: "json", sizeBy: "weight"}, errors.ErrCodeInvalidOption},
		{"bad radius", renderOpts{formats: "json", radius: "10"}, errors.ErrCodeInvalidOption},
		{"inverted radius", renderOpts{formats: "json", radius: "10,1"}, errors.ErrCodeInvalidOption},
		{"bad viewport", renderOpts{formats: "json", viewport: "wide"}, errors.ErrCodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.pipelineOptions(nil, defaultConfig(), g)
			if !errors.Is(err, tt.code) {
				t.Errorf("pipelineOptions() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestOutputPaths(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		formats []string
		want    map[string]string
	}{
		{"default single", "", []string{"html"}, map[string]string{"html": "people.html"}},
		{"explicit single", "out/page.htm", []string{"html"}, map[string]string{"html": "out/page.htm"}},
		{"base path", "out/g.svg", []string{"svg", "dot"}, map[string]string{"svg": "out/g.svg", "dot": "out/g.dot"}},
		{"screenshot alone", "", []string{"screenshot"}, map[string]string{"screenshot": "people.png"}},
		{"screenshot and png", "", []string{"png", "screenshot"}, map[string]string{"png": "people.png", "screenshot": "people.screenshot.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputPaths("people", tt.output, tt.formats)
			if len(got) != len(tt.want) {
				t.Fatalf("outputPaths = %v, want %v", got, tt.want)
			}
			for f, p := range tt.want {
				if got[f] != p {
					t.Errorf("path[%s] = %q, want %q", f, got[f], p)
				}
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"n=50", "w=0.5", "ok=true", "name=Alice", "expr=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"n": int64(50), "w": 0.5, "ok": true, "name": "Alice", "expr": "a=b"}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("params[%s] = %#v, want %#v", k, params[k], v)
		}
	}
	if _, err := parseParams([]string{"=1"}); !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Errorf("empty key error = %v", err)
	}
	if p, err := parseParams(nil); p != nil || err != nil {
		t.Errorf("parseParams(nil) = %v, %v", p, err)
	}
}

func TestNeo4jConfigPrecedence(t *testing.T) {
	base := defaultConfig().Neo4j
	base.URI = "neo4j://config:7687"
	base.Password = "from-config"

	t.Setenv("NEO4J_PASSWORD", "from-env")
	got := neo4jConfig(base, &neo4jImportOpts{database: "movies"})
	if got.URI != "neo4j://config:7687" || got.Password != "from-env" || got.Database != "movies" {
		t.Errorf("neo4jConfig = %+v", got)
	}
	got = neo4jConfig(base, &neo4jImportOpts{uri: "bolt://flag:7687", password: "from-flag"})
	if got.URI != "bolt://flag:7687" || got.Password != "from-flag" {
		t.Errorf("flags should win: %+v", got)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "—"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "Jan 15, 2024"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.t, now); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestGraphListModel(t *testing.T) {
	infos := []store.Info{{Name: "alpha", Nodes: 3}, {Name: "beta", Nodes: 5}, {Name: "gamma"}}
	var m tea.Model = NewGraphListModel(infos)

	key := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }
	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("j")) // clamps at the last row
	m, _ = m.Update(key("k"))
	if got := m.(GraphListModel).Cursor; got != 1 {
		t.Fatalf("Cursor = %d, want 1", got)
	}
	if view := m.View(); !strings.Contains(view, "beta") || !strings.Contains(view, "[2/3]") {
		t.Errorf("View() = %q", view)
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	sel := m.(GraphListModel).Selected
	if sel == nil || sel.Name != "beta" {
		t.Fatalf("Selected = %v, want beta", sel)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestRenderCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "people.json"), `{
  "nodes": [
    {"id": "a", "caption": "Alice", "properties": {"kind": "person"}},
    {"id": "b", "caption": "Bob", "properties": {"kind": "person"}}
  ],
  "relationships": [{"id": "r", "from": "a", "to": "b", "caption": "KNOWS"}]
}`)
	bundle := writeFile(t, filepath.Join(dir, "nvl.js"), "window.NVL = function() {};")
	base := filepath.Join(dir, "out", "people")
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "render", in, "-f", "html,dot,json", "-o", base, "--bundle", bundle, "--color-by", "kind", "--title", "People")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	page, err := os.ReadFile(base + ".html")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<title>People</title>", "window.NVL = function() {};", "Alice"} {
		if !bytes.Contains(page, []byte(want)) {
			t.Errorf("page missing %q", want)
		}
	}
	dot, err := os.ReadFile(base + ".dot")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(dot, []byte(graph.DiscretePalette[0])) {
		t.Errorf("dot should carry the assigned color: %s", dot)
	}
	out, err := graph.ReadFile(base + ".json")
	if err != nil {
		t.Fatal(err)
	}
	if out.Nodes[0].Color != graph.DiscretePalette[0] {
		t.Errorf("json node color = %q", out.Nodes[0].Color)
	}

	if _, err := execute(t, "render", in, "-f", "html"); !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Errorf("html without bundle = %v, want InvalidOption", err)
	}
}

func TestImportCSVAndStore(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	nodes := writeFile(t, filepath.Join(dir, "nodes.csv"), "id,caption,team\n1,Alice,core\n2,Bob,web\n")
	rels := writeFile(t, filepath.Join(dir, "rels.csv"), "from,to,caption\n1,2,KNOWS\n")

	if _, err := execute(t, "import", "csv", "--nodes", nodes, "--relationships", rels, "--save", "team"); err != nil {
		t.Fatalf("import csv: %v", err)
	}

	out, err := execute(t, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var infos []store.Info
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("list output %q: %v", out, err)
	}
	if len(infos) != 1 || infos[0].Name != "team" || infos[0].Nodes != 2 || infos[0].Relationships != 1 {
		t.Errorf("list = %+v", infos)
	}

	tableOut, err := execute(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tableOut, "team") {
		t.Errorf("list table = %q", tableOut)
	}

	if _, err := execute(t, "delete", "team"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := execute(t, "delete", "team"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("second delete = %v, want NotFound", err)
	}
}

func TestImportNeedsTarget(t *testing.T) {
	isolate(t)
	_, err := execute(t, "import", "csv", "--nodes", "nodes.csv")
	if !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Errorf("import without target = %v, want InvalidOption", err)
	}
	_, err = execute(t, "import", "neo4j", "MATCH (n) RETURN n", "-o", "g.json")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("neo4j import without URI = %v, want InvalidInput", err)
	}
}

func TestManifestCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "manifest")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("manifest %q: %v", out, err)
	}
	if m["name"] != "nvlviz-widget" || m["entry"] != "index.html" {
		t.Errorf("manifest = %v", m)
	}
}

func TestCachePathCommand(t *testing.T) {
	root := isolate(t)
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "xdg_cache_home", appName); strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 5 << 20: "5.0 MiB"}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
