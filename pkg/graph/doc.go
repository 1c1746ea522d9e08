// Package graph provides the visualization graph model shared by every nvlviz
// component: importers produce it, renderers and the live widget consume it,
// and stores persist it.
//
// # Core Types
//
//   - [Node]: a vertex with optional display attributes and free-form properties
//   - [Relationship]: a directed edge between two node identifiers
//   - [VisualizationGraph]: a snapshot of nodes and relationships
//
// # Wire Format
//
// Graphs use the node-link JSON shape the NVL engine consumes directly:
//
//	{
//	  "nodes": [{"id": "a", "caption": "Alice"}, {"id": "b"}],
//	  "relationships": [{"id": "r1", "from": "a", "to": "b", "caption": "KNOWS"}]
//	}
//
// Input keys are case-insensitive and accept snake_case or camelCase, so
// "captionAlign", "caption_align" and "CAPTION_ALIGN" all name the same field.
// Node identifiers may also be given as "nodeId"; relationship endpoints as
// "source"/"target", "sourceNodeId"/"targetNodeId" or "from"/"to". Numeric
// identifiers are accepted and stored in their decimal string form. Unknown keys
// are rejected.
//
// Colors are normalized to long hex ("#ff0000") on input and may be given as
// "#f00", "#ff0000", "rgb(255, 0, 0)", a CSS color name or an [r, g, b] array.
//
// # Styling Operations
//
//	g.TogglePinned(map[string]bool{"a": true})
//	g.ResizeNodes(map[string]float64{"a": 10, "b": 20}, &graph.DefaultRadius)
//	report, err := g.ColorNodes(graph.ColorOptions{Property: "team"})
//
// # Referential Integrity
//
// [VisualizationGraph.Validate] enforces unique node identifiers and that both
// endpoints of every relationship reference a node in the same snapshot.
// Readers validate on load.
package graph
