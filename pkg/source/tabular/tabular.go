// Package tabular imports visualization graphs from CSV tables.
//
// Every table has a header row. Columns named like a node or relationship
// field (case and underscores are ignored, so "source_node_id" and
// "sourceNodeId" both name the relationship source) become that field; all
// other columns become properties. Property cells holding integers, floats or
// booleans are typed; empty cells are omitted.
package tabular

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	nverrors "github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

// Options controls the import.
type Options struct {
	// Radius is the range node sizes are scaled into when every node table
	// has a size column. Nil means graph.DefaultRadius.
	Radius *graph.RadiusRange
	// KeepSizes disables the scaling.
	KeepSizes bool
	// Rename maps column names to property names.
	Rename map[string]string
}

// fields whose cells are not strings.
var (
	numberFields = map[string]bool{"captionSize": true, "size": true, "x": true, "y": true}
	boolFields   = map[string]bool{"pinned": true}
)

// FromCSV builds a graph from node and relationship tables.
func FromCSV(nodeTables, relTables []io.Reader, opts Options) (*graph.VisualizationGraph, error) {
	g := graph.New([]graph.Node{}, []graph.Relationship{})
	hasSize := len(nodeTables) > 0

	for i, r := range nodeTables {
		header, rows, err := readTable(r)
		if err != nil {
			return nil, nverrors.Wrap(nverrors.ErrCodeInvalidFormat, err, "node table %d", i+1)
		}
		hasSize = hasSize && hasColumn(header, graph.FieldName, "size")
		for j, row := range rows {
			var n graph.Node
			if err := decodeRow(header, row, graph.FieldName, opts.Rename, &n); err != nil {
				return nil, rowError(err, "node table %d row %d", i+1, j+2)
			}
			g.Nodes = append(g.Nodes, n)
		}
	}

	for i, r := range relTables {
		header, rows, err := readTable(r)
		if err != nil {
			return nil, nverrors.Wrap(nverrors.ErrCodeInvalidFormat, err, "relationship table %d", i+1)
		}
		for j, row := range rows {
			var rel graph.Relationship
			if err := decodeRow(header, row, graph.RelationshipFieldName, opts.Rename, &rel); err != nil {
				return nil, rowError(err, "relationship table %d row %d", i+1, j+2)
			}
			g.Relationships = append(g.Relationships, rel)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if hasSize && !opts.KeepSizes {
		radius := graph.DefaultRadius
		if opts.Radius != nil {
			radius = *opts.Radius
		}
		if err := g.ResizeNodes(nil, &radius); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// FromCSVFiles opens the named tables and calls FromCSV.
func FromCSVFiles(nodePaths, relPaths []string, opts Options) (*graph.VisualizationGraph, error) {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	open := func(paths []string) ([]io.Reader, error) {
		readers := make([]io.Reader, 0, len(paths))
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, nverrors.Wrap(nverrors.ErrCodeFileNotFound, err, "table %s", p)
				}
				return nil, err
			}
			files = append(files, f)
			readers = append(readers, f)
		}
		return readers, nil
	}
	nodes, err := open(nodePaths)
	if err != nil {
		return nil, err
	}
	rels, err := open(relPaths)
	if err != nil {
		return nil, err
	}
	return FromCSV(nodes, rels, opts)
}

// rowError locates err, keeping the code of structured errors.
func rowError(err error, format string, args ...any) error {
	code := nverrors.GetCode(err)
	if code == "" {
		code = nverrors.ErrCodeInvalidGraph
	}
	return nverrors.Wrap(code, err, format, args...)
}

func readTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("missing header row")
	}
	return records[0], records[1:], nil
}

func hasColumn(header []string, field func(string) string, name string) bool {
	for _, h := range header {
		if field(h) == name {
			return true
		}
	}
	return false
}

// decodeRow assembles the JSON form of one element and decodes it into dst,
// so rows go through the same aliasing and validation as JSON input.
func decodeRow(header, row []string, field func(string) string, rename map[string]string, dst json.Unmarshaler) error {
	obj := make(map[string]any, len(header))
	props := map[string]any{}
	for i, h := range header {
		if i >= len(row) || row[i] == "" {
			continue
		}
		cell := row[i]
		name := field(h)
		if name == "" || name == "properties" {
			key := h
			if to, ok := rename[h]; ok {
				key = to
			}
			props[key] = parseCell(cell)
			continue
		}
		v, err := fieldValue(name, cell)
		if err != nil {
			return err
		}
		obj[h] = v
	}
	if len(props) > 0 {
		obj["properties"] = props
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return dst.UnmarshalJSON(data)
}

func fieldValue(name, cell string) (any, error) {
	switch {
	case numberFields[name]:
		f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nverrors.New(nverrors.ErrCodeInvalidGraph, "%s must be a number, got %q", name, cell)
		}
		return f, nil
	case boolFields[name]:
		b, err := strconv.ParseBool(strings.TrimSpace(cell))
		if err != nil {
			return nil, nverrors.New(nverrors.ErrCodeInvalidGraph, "%s must be true or false, got %q", name, cell)
		}
		return b, nil
	}
	return cell, nil
}

// parseCell types a property cell.
func parseCell(cell string) any {
	s := strings.TrimSpace(cell)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}
