package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

// FileStore keeps graphs as <dir>/<name>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Save validates g and writes it atomically.
func (s *FileStore) Save(_ context.Context, name string, g *graph.VisualizationGraph) error {
	if err := errors.ValidateGraphName(name); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := graph.Marshal(g)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}

// Load reads the graph stored under name.
func (s *FileStore) Load(_ context.Context, name string) (*graph.VisualizationGraph, error) {
	if err := errors.ValidateGraphName(name); err != nil {
		return nil, err
	}
	g, err := graph.ReadFile(s.path(name))
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "graph %q not found", name)
	}
	return g, err
}

// List returns every stored graph sorted by name.
func (s *FileStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || errors.ValidateGraphName(name) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		counts, err := s.counts(name)
		if err != nil {
			continue
		}
		counts.Name = name
		counts.UpdatedAt = info.ModTime()
		out = append(out, counts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// counts decodes only the element arrays' lengths.
func (s *FileStore) counts(name string) (Info, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return Info{}, err
	}
	var shape struct {
		Nodes         []json.RawMessage `json:"nodes"`
		Relationships []json.RawMessage `json:"relationships"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return Info{}, err
	}
	return Info{Nodes: len(shape.Nodes), Relationships: len(shape.Relationships)}, nil
}

// Delete removes the graph stored under name.
func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := errors.ValidateGraphName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return errors.New(errors.ErrCodeNotFound, "graph %q not found", name)
	}
	return err
}

// Close does nothing for file stores.
func (s *FileStore) Close(context.Context) error { return nil }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

var _ Store = (*FileStore)(nil)
