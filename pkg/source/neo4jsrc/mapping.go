// Package neo4jsrc imports visualization graphs from Neo4j.
//
// [FromGraph] maps driver nodes and relationships to graph elements. [Query]
// runs a Cypher query and maps every node, relationship and path in the
// result; an [Importer] does the same with a result cache in front.
//
// Node captions default to the sorted labels joined by ":" and relationship
// captions to the relationship type. Labels and type are also kept in the
// element properties. Database properties that clash with those names are
// prefixed with "__".
package neo4jsrc

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

// Caption sources that are not properties.
const (
	CaptionLabels = "labels"
	CaptionType   = "type"
)

// Options controls the mapping.
type Options struct {
	// SizeProperty names the node property used as node size.
	SizeProperty string
	// NodeCaption names the property used as node caption; empty means
	// CaptionLabels.
	NodeCaption string
	// RelationshipCaption names the property used as relationship caption;
	// empty means CaptionType.
	RelationshipCaption string
	// Radius scales sizes into a radius range when SizeProperty is set.
	// Nil means graph.DefaultRadius.
	Radius *graph.RadiusRange
}

var (
	protectedNodeProps = []string{"id", "caption", "labels", "size"}
	protectedRelProps  = []string{"id", "from", "to", "type", "caption"}
)

// FromGraph maps driver values to a visualization graph. Relationships whose
// endpoints are not among nodes are dropped.
func FromGraph(nodes []dbtype.Node, rels []dbtype.Relationship, opts Options) (*graph.VisualizationGraph, error) {
	out := graph.New(make([]graph.Node, 0, len(nodes)), make([]graph.Relationship, 0, len(rels)))
	known := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		mapped, err := mapNode(n, opts)
		if err != nil {
			return nil, err
		}
		known[mapped.ID] = true
		out.Nodes = append(out.Nodes, mapped)
	}
	for _, r := range rels {
		if !known[r.StartElementId] || !known[r.EndElementId] {
			continue
		}
		out.Relationships = append(out.Relationships, mapRelationship(r, opts))
	}

	if opts.SizeProperty != "" {
		radius := graph.DefaultRadius
		if opts.Radius != nil {
			radius = *opts.Radius
		}
		if err := out.ResizeNodes(nil, &radius); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mapNode(n dbtype.Node, opts Options) (graph.Node, error) {
	labels := append([]string(nil), n.Labels...)
	sort.Strings(labels)

	node := graph.Node{ID: n.ElementId}
	switch opts.NodeCaption {
	case "", CaptionLabels:
		node.Caption = strings.Join(labels, ":")
	default:
		node.Caption = caption(n.Props, opts.NodeCaption)
	}

	if opts.SizeProperty != "" {
		if v, ok := n.Props[opts.SizeProperty]; ok && v != nil {
			size, ok := toFloat(v)
			if !ok {
				return graph.Node{}, errors.New(errors.ErrCodeInvalidOption,
					"size property %q of node %s is not a number: %v", opts.SizeProperty, n.ElementId, v)
			}
			node.Size = &size
		}
	}

	props := renameProtected(n.Props, protectedNodeProps)
	labelValues := make([]any, len(labels))
	for i, l := range labels {
		labelValues[i] = l
	}
	props["labels"] = labelValues
	node.Properties = props
	return node, nil
}

func mapRelationship(r dbtype.Relationship, opts Options) graph.Relationship {
	rel := graph.Relationship{
		ID:   r.ElementId,
		From: r.StartElementId,
		To:   r.EndElementId,
	}
	switch opts.RelationshipCaption {
	case "", CaptionType:
		rel.Caption = r.Type
	default:
		rel.Caption = caption(r.Props, opts.RelationshipCaption)
	}
	props := renameProtected(r.Props, protectedRelProps)
	props["type"] = r.Type
	rel.Properties = props
	return rel
}

func caption(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(convert(v))
}

// renameProtected copies props, converting driver values to JSON friendly
// ones and prefixing protected names with "__".
func renameProtected(props map[string]any, protected []string) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = convert(v)
	}
	for _, p := range protected {
		if v, ok := out[p]; ok {
			delete(out, p)
			out["__"+p] = v
		}
	}
	return out
}

// convert renders temporal and spatial values as strings.
func convert(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case dbtype.Date:
		return x.String()
	case dbtype.LocalTime:
		return x.String()
	case dbtype.LocalDateTime:
		return x.String()
	case dbtype.Time:
		return x.String()
	case dbtype.Duration:
		return x.String()
	case dbtype.Point2D:
		return x.String()
	case dbtype.Point3D:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convert(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = convert(e)
		}
		return out
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
