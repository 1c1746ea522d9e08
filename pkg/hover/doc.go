// Package hover turns whatever the visualization engine reports under the
// pointer into the contents of the inspection tooltip.
//
// The flow has two pure steps and one stateful one:
//
//	target := hover.Classify(payload) // None, Node(id) or Edge(source, target)
//	state := hover.Render(target)     // {Visible, Content}
//	overlay.Apply(state)              // writes to the tooltip surface
//
// [Classify] never fails: unknown or malformed payloads classify as None and
// hide the tooltip. A payload carrying a source reference ("from") is an edge
// even if it also has an "id"; otherwise an "id" makes it a node.
//
// [Overlay] owns one tooltip [Surface] and skips writes that would not change
// what the user sees, so a stream of identical hover events costs nothing.
package hover
