package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/nvlviz/pkg/errors"
)

// ColorSpace selects how [VisualizationGraph.ColorNodes] maps values to colors.
type ColorSpace string

const (
	// Discrete assigns one palette color per distinct value.
	Discrete ColorSpace = "discrete"
	// Continuous maps numeric values onto a gradient.
	Continuous ColorSpace = "continuous"
)

// MissingColor is assigned to nodes whose value has no entry in a color map.
const MissingColor = "#cccccc"

// DiscretePalette is the default palette for categorical coloring.
var DiscretePalette = []string{
	"#ffdf81", "#c990c0", "#f79767", "#56c7e4", "#f16767", "#d8c7ae",
	"#8dcc93", "#ecb4c9", "#4d8dda", "#ffc454", "#da7194", "#569480",
}

// continuousStops are the anchors of the default gradient.
var continuousStops = []string{"#fde9b5", "#f79767", "#da7194", "#8a6cc7", "#4d8dda"}

// ContinuousPalette is the default 256 step gradient for numeric coloring.
var ContinuousPalette = Gradient(continuousStops, 256)

// Gradient linearly interpolates n colors in RGB space through the given stops.
// Invalid stops panic, so it is meant for package-level palettes.
func Gradient(stops []string, n int) []string {
	cs := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			panic(fmt.Sprintf("graph: invalid gradient stop %q", s))
		}
		cs[i] = c
	}
	out := make([]string, n)
	if n == 1 || len(cs) == 1 {
		for i := range out {
			out[i] = cs[0].Hex()
		}
		return out
	}
	segments := float64(len(cs) - 1)
	for i := range out {
		pos := float64(i) / float64(n-1) * segments
		seg := int(math.Min(math.Floor(pos), segments-1))
		out[i] = cs[seg].BlendRgb(cs[seg+1], pos-float64(seg)).Clamped().Hex()
	}
	return out
}

// namedColors covers the CSS keywords people commonly type.
var namedColors = map[string]string{
	"black": "#000000", "white": "#ffffff", "red": "#ff0000", "green": "#008000",
	"lime": "#00ff00", "blue": "#0000ff", "yellow": "#ffff00", "cyan": "#00ffff",
	"aqua": "#00ffff", "magenta": "#ff00ff", "fuchsia": "#ff00ff", "gray": "#808080",
	"grey": "#808080", "silver": "#c0c0c0", "maroon": "#800000", "olive": "#808000",
	"purple": "#800080", "teal": "#008080", "navy": "#000080", "orange": "#ffa500",
	"pink": "#ffc0cb", "brown": "#a52a2a", "gold": "#ffd700", "indigo": "#4b0082",
	"violet": "#ee82ee", "coral": "#ff7f50", "salmon": "#fa8072", "khaki": "#f0e68c",
	"crimson": "#dc143c", "turquoise": "#40e0d0", "lightgray": "#d3d3d3",
	"lightgrey": "#d3d3d3", "darkgray": "#a9a9a9", "darkgrey": "#a9a9a9",
}

// ParseColor normalizes a color string to long lower-case hex.
func ParseColor(s string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColors[in]; ok {
		return hex, nil
	}
	if strings.HasPrefix(in, "rgb(") && strings.HasSuffix(in, ")") {
		parts := strings.Split(in[4:len(in)-1], ",")
		if len(parts) != 3 {
			return "", errors.New(errors.ErrCodeInvalidColor, "invalid color %q", s)
		}
		var v [3]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return "", errors.New(errors.ErrCodeInvalidColor, "invalid color %q", s)
			}
			v[i] = f
		}
		return RGB(v[0], v[1], v[2])
	}
	if !strings.HasPrefix(in, "#") {
		in = "#" + in
	}
	// colorful.Hex scans with Sscanf, which accepts short and trailing input.
	if !isHexColor(in) {
		return "", errors.New(errors.ErrCodeInvalidColor, "invalid color %q", s)
	}
	c, err := colorful.Hex(in)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidColor, "invalid color %q", s)
	}
	return c.Hex(), nil
}

// isHexColor reports whether s is "#rgb" or "#rrggbb".
func isHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// RGB converts 0-255 channel values to long hex.
func RGB(r, g, b float64) (string, error) {
	for _, v := range []float64{r, g, b} {
		if v < 0 || v > 255 || math.IsNaN(v) {
			return "", errors.New(errors.ErrCodeInvalidColor, "color channel out of range: %g", v)
		}
	}
	return colorful.Color{R: r / 255, G: g / 255, B: b / 255}.Hex(), nil
}

// =============================================================================
// ColorNodes
// =============================================================================

// ColorOptions configures [VisualizationGraph.ColorNodes].
// Exactly one of Field and Property must be set.
type ColorOptions struct {
	Field    string            // node field name, e.g. "caption"
	Property string            // key in Node.Properties
	Colors   []string          // palette; defaults depend on Space
	ColorMap map[string]string // explicit value to color mapping (discrete only)
	Space    ColorSpace        // defaults to Discrete
	Override bool              // replace colors nodes already have
}

// ColorReport summarizes a coloring pass.
type ColorReport struct {
	Attribute string // field or property colored by
	Distinct  int    // distinct values seen
	Colors    int    // distinct colors used
	Exhausted bool   // palette ran out and colors were reused
}

// Warning returns a human readable note when the palette was exhausted.
func (r ColorReport) Warning() string {
	if !r.Exhausted {
		return ""
	}
	return fmt.Sprintf("Ran out of colors for property %q. %d colors were needed, but only %d were given, so reused colors",
		r.Attribute, r.Distinct, r.Colors)
}

// ColorNodes colors nodes by the value of a field or property.
//
// In the discrete space each distinct value takes the next palette color in
// node order, cycling when the palette runs out. With a ColorMap, values are
// looked up directly and unmapped nodes get [MissingColor]. In the continuous
// space numeric values are normalized to [0, 1] and mapped onto the palette by
// index round(v*(len-1)).
func (g *VisualizationGraph) ColorNodes(opts ColorOptions) (ColorReport, error) {
	if (opts.Field == "") == (opts.Property == "") {
		return ColorReport{}, errors.New(errors.ErrCodeInvalidOption,
			"exactly one of field (%q) and property (%q) must be provided", opts.Field, opts.Property)
	}
	attr := opts.Property
	value := func(n *Node) any { return n.Properties[attr] }
	if opts.Field != "" {
		attr = opts.Field
		name := FieldName(opts.Field)
		if name == "" {
			return ColorReport{}, errors.New(errors.ErrCodeInvalidOption, "unknown node field %q", opts.Field)
		}
		value = func(n *Node) any { return n.field(name) }
	}

	report := ColorReport{Attribute: attr}
	switch opts.Space {
	case "", Discrete:
	case Continuous:
		if opts.ColorMap != nil {
			return report, errors.New(errors.ErrCodeInvalidOption, "continuous coloring takes a list of colors, not a mapping")
		}
		mapping, err := g.continuousMapping(value, opts.Colors)
		if err != nil {
			return report, err
		}
		return g.colorByMap(report, mapping, value, opts.Override)
	default:
		return report, errors.New(errors.ErrCodeInvalidOption, "unknown color space %q", opts.Space)
	}

	if opts.ColorMap != nil {
		mapping := make(map[string]string, len(opts.ColorMap))
		for k, c := range opts.ColorMap {
			hex, err := ParseColor(c)
			if err != nil {
				return report, err
			}
			mapping[k] = hex
		}
		return g.colorByMap(report, mapping, value, opts.Override)
	}

	palette := opts.Colors
	if len(palette) == 0 {
		palette = DiscretePalette
	}
	parsed := make([]string, len(palette))
	for i, c := range palette {
		hex, err := ParseColor(c)
		if err != nil {
			return report, err
		}
		parsed[i] = hex
	}

	assigned := make(map[string]string)
	used := make(map[string]bool)
	next := 0
	for i := range g.Nodes {
		n := &g.Nodes[i]
		key, err := valueKey(value(n))
		if err != nil {
			return report, err
		}
		c, ok := assigned[key]
		if !ok {
			if next == len(parsed) {
				report.Exhausted = true
				next = 0
			}
			c = parsed[next]
			next++
			assigned[key] = c
			used[c] = true
		}
		if n.Color != "" && !opts.Override {
			continue
		}
		n.Color = c
	}
	report.Distinct = len(assigned)
	report.Colors = len(used)
	return report, nil
}

func (g *VisualizationGraph) colorByMap(report ColorReport, mapping map[string]string, value func(*Node) any, override bool) (ColorReport, error) {
	seen := make(map[string]bool)
	used := make(map[string]bool)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Color != "" && !override {
			continue
		}
		v := value(n)
		key, err := valueKey(v)
		if err != nil {
			return report, err
		}
		c, ok := mapping[key]
		if v == nil || !ok {
			c = MissingColor
		} else {
			seen[key] = true
		}
		used[c] = true
		n.Color = c
	}
	report.Distinct = len(seen)
	report.Colors = len(used)
	return report, nil
}

// continuousMapping builds a value-key to color map for numeric values.
func (g *VisualizationGraph) continuousMapping(value func(*Node) any, colors []string) (map[string]string, error) {
	palette := colors
	if len(palette) == 0 {
		palette = ContinuousPalette
	}
	values := make(map[string]float64)
	for i := range g.Nodes {
		v := value(&g.Nodes[i])
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidOption,
				"continuous coloring needs numeric values, node %s has %v", g.Nodes[i].ID, v)
		}
		key, _ := valueKey(v)
		values[key] = f
	}
	mapping := make(map[string]string, len(values))
	if len(values) == 0 {
		return mapping, nil
	}
	for key, norm := range normalize(values, 0, 1) {
		hex, err := ParseColor(palette[int(math.Round(norm*float64(len(palette)-1)))])
		if err != nil {
			return nil, err
		}
		mapping[key] = hex
	}
	return mapping, nil
}

// valueKey turns an attribute value into a comparable key. Strings map to
// themselves so ColorMap keys can be written naturally.
func valueKey(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidOption, err, "unable to color nodes by value of type %T", v)
	}
	return string(data), nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case *float64:
		if x == nil {
			return 0, false
		}
		return *x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
