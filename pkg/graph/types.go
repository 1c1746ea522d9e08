package graph

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/nvlviz/pkg/errors"
)

// CaptionAlign positions a caption relative to its element.
type CaptionAlign string

// Caption alignments.
const (
	CaptionTop    CaptionAlign = "top"
	CaptionCenter CaptionAlign = "center"
	CaptionBottom CaptionAlign = "bottom"
)

// Valid reports whether a is empty or one of the known alignments.
func (a CaptionAlign) Valid() bool {
	switch a {
	case "", CaptionTop, CaptionCenter, CaptionBottom:
		return true
	}
	return false
}

// =============================================================================
// Node
// =============================================================================

// Node is a vertex of a visualization graph.
//
// Pointer fields distinguish "unset" from a zero value so the engine can apply
// its own defaults.
type Node struct {
	ID           string         `json:"id" bson:"id"`
	Caption      string         `json:"caption,omitempty" bson:"caption,omitempty"`
	CaptionAlign CaptionAlign   `json:"captionAlign,omitempty" bson:"caption_align,omitempty"`
	CaptionSize  int            `json:"captionSize,omitempty" bson:"caption_size,omitempty"` // 1..3, font size to radius ratio
	Size         *float64       `json:"size,omitempty" bson:"size,omitempty"`                // radius in pixels
	Color        string         `json:"color,omitempty" bson:"color,omitempty"`              // long hex
	Pinned       *bool          `json:"pinned,omitempty" bson:"pinned,omitempty"`
	X            *float64       `json:"x,omitempty" bson:"x,omitempty"`
	Y            *float64       `json:"y,omitempty" bson:"y,omitempty"`
	Properties   map[string]any `json:"properties,omitempty" bson:"properties,omitempty"`
}

// Validate checks the display attributes of n.
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New(errors.ErrCodeInvalidGraph, "node id cannot be empty")
	}
	if !n.CaptionAlign.Valid() {
		return errors.New(errors.ErrCodeInvalidGraph, "node %s: invalid caption alignment %q", n.ID, n.CaptionAlign)
	}
	if n.CaptionSize != 0 && (n.CaptionSize < 1 || n.CaptionSize > 3) {
		return errors.New(errors.ErrCodeInvalidGraph, "node %s: caption size must be between 1 and 3, got %d", n.ID, n.CaptionSize)
	}
	if n.Size != nil && *n.Size < 0 {
		return errors.New(errors.ErrCodeInvalidGraph, "node %s: size must be non-negative, got %g", n.ID, *n.Size)
	}
	return nil
}

// UnmarshalJSON decodes a node accepting the key aliases described in the
// package documentation.
func (n *Node) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data, "node", nodeAliases)
	if err != nil {
		return err
	}

	var out Node
	for name, raw := range fields {
		switch name {
		case "id":
			out.ID, err = decodeID(raw)
		case "caption":
			err = json.Unmarshal(raw, &out.Caption)
		case "captionAlign":
			err = json.Unmarshal(raw, &out.CaptionAlign)
		case "captionSize":
			err = json.Unmarshal(raw, &out.CaptionSize)
		case "size":
			err = json.Unmarshal(raw, &out.Size)
		case "color":
			out.Color, err = decodeColor(raw)
		case "pinned":
			err = json.Unmarshal(raw, &out.Pinned)
		case "x":
			err = json.Unmarshal(raw, &out.X)
		case "y":
			err = json.Unmarshal(raw, &out.Y)
		case "properties":
			err = decodeProperties(raw, &out.Properties)
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidGraph, err, "node field %s", name)
		}
	}
	if _, ok := fields["id"]; !ok {
		return errors.New(errors.ErrCodeInvalidGraph, "node is missing required field id")
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*n = out
	return nil
}

// =============================================================================
// Relationship
// =============================================================================

// Relationship is a directed edge between two nodes.
type Relationship struct {
	ID           string         `json:"id" bson:"id"`
	From         string         `json:"from" bson:"from"`
	To           string         `json:"to" bson:"to"`
	Caption      string         `json:"caption,omitempty" bson:"caption,omitempty"`
	CaptionAlign CaptionAlign   `json:"captionAlign,omitempty" bson:"caption_align,omitempty"`
	CaptionSize  float64        `json:"captionSize,omitempty" bson:"caption_size,omitempty"`
	Color        string         `json:"color,omitempty" bson:"color,omitempty"`
	Properties   map[string]any `json:"properties,omitempty" bson:"properties,omitempty"`
}

// NewRelationship returns a relationship from source to target with a random id.
func NewRelationship(from, to string) Relationship {
	return Relationship{ID: newRelationshipID(), From: from, To: to}
}

func newRelationshipID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate checks the display attributes of r.
func (r *Relationship) Validate() error {
	if r.From == "" || r.To == "" {
		return errors.New(errors.ErrCodeInvalidGraph, "relationship %s: source and target are required", r.ID)
	}
	if !r.CaptionAlign.Valid() {
		return errors.New(errors.ErrCodeInvalidGraph, "relationship %s: invalid caption alignment %q", r.ID, r.CaptionAlign)
	}
	if r.CaptionSize < 0 {
		return errors.New(errors.ErrCodeInvalidGraph, "relationship %s: caption size must be positive, got %g", r.ID, r.CaptionSize)
	}
	return nil
}

// UnmarshalJSON decodes a relationship accepting the key aliases described in
// the package documentation. A missing id is replaced by a random hex UUID.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data, "relationship", relationshipAliases)
	if err != nil {
		return err
	}

	var out Relationship
	for name, raw := range fields {
		switch name {
		case "id":
			out.ID, err = decodeID(raw)
		case "from":
			out.From, err = decodeID(raw)
		case "to":
			out.To, err = decodeID(raw)
		case "caption":
			err = json.Unmarshal(raw, &out.Caption)
		case "captionAlign":
			err = json.Unmarshal(raw, &out.CaptionAlign)
		case "captionSize":
			err = json.Unmarshal(raw, &out.CaptionSize)
		case "color":
			out.Color, err = decodeColor(raw)
		case "properties":
			err = decodeProperties(raw, &out.Properties)
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidGraph, err, "relationship field %s", name)
		}
	}
	if out.ID == "" {
		out.ID = newRelationshipID()
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*r = out
	return nil
}

// =============================================================================
// Key aliasing
// =============================================================================

var nodeAliases = map[string]string{
	"id":           "id",
	"nodeid":       "id",
	"caption":      "caption",
	"captionalign": "captionAlign",
	"captionsize":  "captionSize",
	"size":         "size",
	"color":        "color",
	"pinned":       "pinned",
	"x":            "x",
	"y":            "y",
	"properties":   "properties",
}

var relationshipAliases = map[string]string{
	"id":           "id",
	"source":       "from",
	"sourcenodeid": "from",
	"from":         "from",
	"target":       "to",
	"targetnodeid": "to",
	"to":           "to",
	"caption":      "caption",
	"captionalign": "captionAlign",
	"captionsize":  "captionSize",
	"color":        "color",
	"properties":   "properties",
}

// foldKey reduces snake_case, camelCase and upper-case spellings to one form.
func foldKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

// FieldName resolves an input key to the canonical node field name, or "" if
// the key does not name a node field.
func FieldName(key string) string {
	return nodeAliases[foldKey(key)]
}

// RelationshipFieldName resolves an input key to the canonical relationship
// field name, or "" if the key does not name a relationship field.
func RelationshipFieldName(key string) string {
	return relationshipAliases[foldKey(key)]
}

func decodeFields(data []byte, kind string, aliases map[string]string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode %s", kind)
	}
	fields := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		name, ok := aliases[foldKey(k)]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidGraph, "unknown %s field %q", kind, k)
		}
		if _, dup := fields[name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidGraph, "%s field %s given more than once", kind, name)
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		fields[name] = v
	}
	return fields, nil
}

// decodeID accepts a JSON string or number and returns its string form.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return "", errors.New(errors.ErrCodeInvalidGraph, "identifier must be a string or an integer, got %s", raw)
	}
	if _, err := strconv.ParseInt(num.String(), 10, 64); err != nil {
		return "", errors.New(errors.ErrCodeInvalidGraph, "identifier must be a string or an integer, got %s", raw)
	}
	return num.String(), nil
}

func decodeColor(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseColor(s)
	}
	var rgb []float64
	if err := json.Unmarshal(raw, &rgb); err != nil || len(rgb) != 3 {
		return "", errors.New(errors.ErrCodeInvalidColor, "color must be a string or an [r, g, b] triple, got %s", raw)
	}
	return RGB(rgb[0], rgb[1], rgb[2])
}

// decodeProperties keeps integers exact instead of widening them to float64.
func decodeProperties(raw json.RawMessage, dst *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return err
	}
	*dst = normalizeNumbers(props).(map[string]any)
	return nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	}
	return v
}
