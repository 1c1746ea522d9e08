package hover

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/matzehuels/nvlviz/pkg/graph"
)

// Kind discriminates a [Target].
type Kind int

const (
	KindNone Kind = iota
	KindNode
	KindEdge
)

// String returns the lower-case kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	default:
		return "none"
	}
}

// Target is the classified hit under the pointer. Only the fields matching
// Kind are meaningful.
type Target struct {
	Kind     Kind
	NodeID   string
	SourceID string
	TargetID string
}

// None is the empty target.
func None() Target { return Target{} }

// NodeTarget returns a node target.
func NodeTarget(id string) Target { return Target{Kind: KindNode, NodeID: id} }

// EdgeTarget returns an edge target.
func EdgeTarget(source, target string) Target {
	return Target{Kind: KindEdge, SourceID: source, TargetID: target}
}

// Classify decides what a hover payload points at.
//
// Accepted payloads are graph.Node and graph.Relationship values or pointers,
// decoded JSON objects (map[string]any) and raw JSON ([]byte,
// json.RawMessage). The decision order is: absent, then source reference,
// then identifier, then None.
func Classify(payload any) Target {
	switch p := payload.(type) {
	case nil:
		return None()
	case graph.Relationship:
		return classifyRelationship(&p)
	case *graph.Relationship:
		if p == nil {
			return None()
		}
		return classifyRelationship(p)
	case graph.Node:
		return classifyNode(&p)
	case *graph.Node:
		if p == nil {
			return None()
		}
		return classifyNode(p)
	case map[string]any:
		return classifyMap(p)
	case json.RawMessage:
		return ClassifyJSON(p)
	case []byte:
		return ClassifyJSON(p)
	}
	return None()
}

// ClassifyJSON classifies a raw JSON payload. Anything that is not a JSON
// object classifies as None.
func ClassifyJSON(data []byte) Target {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return None()
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return None()
	}
	return classifyMap(m)
}

func classifyRelationship(r *graph.Relationship) Target {
	if r.From != "" {
		return EdgeTarget(r.From, r.To)
	}
	if r.ID != "" {
		return NodeTarget(r.ID)
	}
	return None()
}

func classifyNode(n *graph.Node) Target {
	if n.ID == "" {
		return None()
	}
	return NodeTarget(n.ID)
}

func classifyMap(m map[string]any) Target {
	if m == nil {
		return None()
	}
	if from, ok := identifier(m["from"]); ok {
		to, _ := identifier(m["to"])
		return EdgeTarget(from, to)
	}
	if id, ok := identifier(m["id"]); ok {
		return NodeTarget(id)
	}
	return None()
}

// identifier renders a scalar JSON value in its literal string form.
// Null, objects and arrays are not identifiers.
func identifier(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}
