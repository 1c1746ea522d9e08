// Package pkg provides the core libraries for nvlviz, an interactive graph
// viewer with a hover inspection overlay.
//
// # Overview
//
// A graph of nodes and relationships is handed to a browser-side
// visualization engine. Whatever the engine reports under the pointer is
// classified and shown in a small tooltip:
//
//	engine hover event
//	         ↓
//	    [hover] package (classify payload → tooltip state)
//	         ↓
//	    [widget] package (engine lifecycle, interactions, overlay)
//	         ↓
//	    [live] package (websocket bridge to the page)
//
// The same graph can be exported offline through [pipeline], which renders
// HTML pages, JSON, DOT, SVG, PNG, PDF and browser screenshots with
// per-format caching.
//
// # Main Packages
//
// [graph] - Node and relationship types, validation, coloring, sizing and
// JSON serialization.
//
// [hover] - Target classification and tooltip rendering. Pure apart from
// [hover.Overlay], which owns the tooltip surface.
//
// [engine] - Engine configuration and the interfaces a visualization engine
// exposes (instances, interactions, callbacks).
//
// [widget] - Mounts a graph into an engine instance and wires the hover
// interaction to an overlay. Releases everything on close.
//
// [live] - Drives a remote engine running in a browser page over a websocket.
//
// [server] - HTTP surface: standalone pages, exports and the live socket.
//
// [pipeline] - Prepare → render orchestration shared by the CLI and server.
//
// [render] - Output formats: [render/html] (standalone page),
// [render/nodelink] (Graphviz diagrams), [render/screenshot] (headless
// Chrome).
//
// [source] - Graph importers: [source/neo4jsrc] (Cypher queries) and
// [source/tabular] (CSV files).
//
// [cache] and [store] - Artifact cache (file, Redis) and named graph
// storage (file, MongoDB).
//
// [errors] - Coded errors with user-facing messages and HTTP status mapping.
//
// # Testing
//
//	go test ./pkg/...
//
// [graph]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/graph
// [hover]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/hover
// [hover.Overlay]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/hover#Overlay
// [engine]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/engine
// [widget]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/widget
// [live]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/live
// [server]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/server
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/pipeline
// [render]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/render
// [render/html]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/render/html
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/render/nodelink
// [render/screenshot]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/render/screenshot
// [source]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/source
// [source/neo4jsrc]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/source/neo4jsrc
// [source/tabular]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/source/tabular
// [cache]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/store
// [errors]: https://pkg.go.dev/github.com/matzehuels/nvlviz/pkg/errors
package pkg
