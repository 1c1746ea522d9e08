package graph

import (
	"strings"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"#FF0000", "#ff0000", false},
		{"#f00", "#ff0000", false},
		{"00ff00", "#00ff00", false},
		{"Blue", "#0000ff", false},
		{"rgb(255, 128, 0)", "#ff8000", false},
		{"rgb(300, 0, 0)", "", true},
		{"rgb(1,2)", "", true},
		{"#12345", "", true},
		{"#1234567", "", true},
		{"#ff0000zz", "", true},
		{"#ff00zz", "", true},
		{"#12", "", true},
		{"#", "", true},
		{"nope", "", true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGradient(t *testing.T) {
	g := Gradient([]string{"#000000", "#ffffff"}, 3)
	want := []string{"#000000", "#808080", "#ffffff"}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("Gradient[%d] = %s, want %s", i, g[i], want[i])
		}
	}
	if len(ContinuousPalette) != 256 {
		t.Errorf("len(ContinuousPalette) = %d, want 256", len(ContinuousPalette))
	}
	if ContinuousPalette[0] != continuousStops[0] || ContinuousPalette[255] != continuousStops[len(continuousStops)-1] {
		t.Errorf("gradient endpoints = %s, %s", ContinuousPalette[0], ContinuousPalette[255])
	}
}

func TestColorNodesDiscrete(t *testing.T) {
	g := sampleGraph()
	report, err := g.ColorNodes(ColorOptions{Property: "team", Colors: []string{"#111111", "#222222"}})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{g.Nodes[0].Color, g.Nodes[1].Color, g.Nodes[2].Color}
	want := []string{"#111111", "#222222", "#111111"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("node %d color = %s, want %s", i, got[i], want[i])
		}
	}
	if report.Exhausted || report.Distinct != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestColorNodesExhausted(t *testing.T) {
	g := sampleGraph()
	report, err := g.ColorNodes(ColorOptions{Field: "caption", Colors: []string{"red", "blue"}})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Exhausted {
		t.Fatal("expected exhausted palette")
	}
	if g.Nodes[2].Color != "#ff0000" {
		t.Errorf("third node color = %s, want cycled #ff0000", g.Nodes[2].Color)
	}
	if !strings.Contains(report.Warning(), "Ran out of colors") {
		t.Errorf("Warning() = %q", report.Warning())
	}
}

func TestColorNodesOverride(t *testing.T) {
	g := sampleGraph()
	g.Nodes[0].Color = "#abcdef"

	if _, err := g.ColorNodes(ColorOptions{Property: "team"}); err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].Color != "#abcdef" {
		t.Errorf("existing color replaced without override: %s", g.Nodes[0].Color)
	}

	if _, err := g.ColorNodes(ColorOptions{Property: "team", Override: true}); err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].Color != DiscretePalette[0] {
		t.Errorf("override color = %s, want %s", g.Nodes[0].Color, DiscretePalette[0])
	}
}

func TestColorNodesMap(t *testing.T) {
	g := sampleGraph()
	g.Nodes[1].Properties["team"] = "green"
	_, err := g.ColorNodes(ColorOptions{Property: "team", ColorMap: map[string]string{"red": "red"}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].Color != "#ff0000" || g.Nodes[2].Color != "#ff0000" {
		t.Errorf("mapped colors = %s, %s", g.Nodes[0].Color, g.Nodes[2].Color)
	}
	if g.Nodes[1].Color != MissingColor {
		t.Errorf("unmapped color = %s, want %s", g.Nodes[1].Color, MissingColor)
	}
}

func TestColorNodesContinuous(t *testing.T) {
	g := sampleGraph()
	if _, err := g.ColorNodes(ColorOptions{Property: "score", Space: Continuous}); err != nil {
		t.Fatal(err)
	}
	want := []string{ContinuousPalette[0], ContinuousPalette[128], ContinuousPalette[255]}
	for i, w := range want {
		if g.Nodes[i].Color != w {
			t.Errorf("node %d color = %s, want %s", i, g.Nodes[i].Color, w)
		}
	}
}

func TestColorNodesContinuousRejectsText(t *testing.T) {
	g := sampleGraph()
	if _, err := g.ColorNodes(ColorOptions{Property: "team", Space: Continuous}); err == nil {
		t.Fatal("expected error for non-numeric values")
	}
}

func TestColorNodesArguments(t *testing.T) {
	tests := []struct {
		name string
		opts ColorOptions
	}{
		{"neither", ColorOptions{}},
		{"both", ColorOptions{Field: "caption", Property: "team"}},
		{"unknown field", ColorOptions{Field: "labels"}},
		{"unknown space", ColorOptions{Field: "caption", Space: "rainbow"}},
		{"continuous map", ColorOptions{Property: "score", Space: Continuous, ColorMap: map[string]string{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sampleGraph().ColorNodes(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
