package tabular

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

func readers(tables ...string) []io.Reader {
	out := make([]io.Reader, len(tables))
	for i, t := range tables {
		out[i] = strings.NewReader(t)
	}
	return out
}

func TestFromCSV(t *testing.T) {
	nodes := "id,caption,Color,age,member,note\n" +
		"1,Alice,red,30,true,\n" +
		"2,Bob,#00f,41.5,false,hi there\n"
	rels := "source_node_id,targetNodeId,caption,weight\n" +
		"1,2,KNOWS,3\n"

	g, err := FromCSV(readers(nodes), readers(rels), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Nodes) != 2 {
		t.Fatalf("nodes = %d", len(g.Nodes))
	}
	alice, bob := g.Nodes[0], g.Nodes[1]
	if alice.ID != "1" || alice.Caption != "Alice" || alice.Color != "#ff0000" {
		t.Errorf("alice = %+v", alice)
	}
	if alice.Properties["age"] != int64(30) || alice.Properties["member"] != true {
		t.Errorf("alice properties = %v", alice.Properties)
	}
	if _, ok := alice.Properties["note"]; ok {
		t.Error("empty cell kept")
	}
	if bob.Color != "#0000ff" || bob.Properties["age"] != 41.5 || bob.Properties["note"] != "hi there" {
		t.Errorf("bob = %+v", bob)
	}
	if alice.Size != nil {
		t.Error("sizes set without a size column")
	}

	r := g.Relationships[0]
	if r.From != "1" || r.To != "2" || r.Caption != "KNOWS" || r.Properties["weight"] != int64(3) {
		t.Errorf("relationship = %+v", r)
	}
	if r.ID == "" {
		t.Error("relationship id not generated")
	}
}

func TestFromCSVSizes(t *testing.T) {
	tables := readers("id,size\na,1\nb,3\n", "id,size\nc,2\n")
	g, err := FromCSV(tables, nil, Options{Radius: &graph.RadiusRange{Min: 0, Max: 10}})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"a": 0, "b": 10, "c": 5}
	for _, n := range g.Nodes {
		if n.Size == nil || *n.Size != want[n.ID] {
			t.Errorf("size(%s) = %v, want %g", n.ID, n.Size, want[n.ID])
		}
	}

	g, err = FromCSV(readers("id,size\na,1\nb,3\n"), nil, Options{KeepSizes: true})
	if err != nil {
		t.Fatal(err)
	}
	if *g.Nodes[1].Size != 3 {
		t.Errorf("KeepSizes rescaled: %g", *g.Nodes[1].Size)
	}
}

func TestFromCSVSizeColumnMissingInOneTable(t *testing.T) {
	g, err := FromCSV(readers("id,size\na,1\nb,3\n", "id\nc\n"), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if *g.Nodes[1].Size != 3 {
		t.Errorf("sizes rescaled although a table has no size column")
	}
}

func TestFromCSVRename(t *testing.T) {
	g, err := FromCSV(readers("id,yrs\na,4\n"), nil, Options{Rename: map[string]string{"yrs": "years"}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].Properties["years"] != int64(4) {
		t.Errorf("properties = %v", g.Nodes[0].Properties)
	}
}

func TestFromCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes string
		rels  string
		code  errors.Code
	}{
		{"bad size", "id,size\na,big\n", "", errors.ErrCodeInvalidGraph},
		{"bad pinned", "id,pinned\na,maybe\n", "", errors.ErrCodeInvalidGraph},
		{"bad color", "id,color\na,notacolor\n", "", errors.ErrCodeInvalidGraph},
		{"dangling", "id\na\n", "from,to\na,b\n", errors.ErrCodeInvalidGraph},
		{"ragged", "id,x\na,1,2\n", "", errors.ErrCodeInvalidFormat},
		{"empty", "", "", errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rels []io.Reader
			if tt.rels != "" {
				rels = readers(tt.rels)
			}
			_, err := FromCSV(readers(tt.nodes), rels, Options{})
			if !errors.Is(err, tt.code) {
				t.Fatalf("FromCSV() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestFromCSVFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.csv")
	if err := os.WriteFile(path, []byte("id\na\n"), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := FromCSVFiles([]string{path}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 1 {
		t.Fatalf("nodes = %d", len(g.Nodes))
	}

	_, err = FromCSVFiles([]string{filepath.Join(dir, "missing.csv")}, nil, Options{})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Fatalf("missing file error = %v", err)
	}
}
