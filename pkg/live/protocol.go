package live

import (
	"encoding/json"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

// Commands sent to the page.
const (
	cmdInit             = "init"
	cmdSetNodePositions = "setNodePositions"
	cmdAttach           = "attach"
	cmdDetach           = "detach"
	cmdOverlay          = "overlay"
	cmdDestroy          = "destroy"
)

// Events received from the page.
const (
	evReady    = "ready"
	evAck      = "ack"
	evHover    = "hover"
	evCallback = "callback"
)

// Command is a server to page message. Every command carries a sequence
// number the page acknowledges once it has executed it.
type Command struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`

	Nodes         []graph.Node           `json:"nodes,omitempty"`
	Relationships []graph.Relationship   `json:"relationships,omitempty"`
	Options       *engine.Config         `json:"options,omitempty"`
	Callbacks     []string               `json:"callbacks,omitempty"`
	Animate       bool                   `json:"animate,omitempty"`
	Kind          engine.InteractionKind `json:"kind,omitempty"`
	Content       *string                `json:"content,omitempty"`
	Visible       *bool                  `json:"visible,omitempty"`
}

// Event is a page to server message.
type Event struct {
	Type string `json:"type"`

	// ack
	Seq   uint64 `json:"seq,omitempty"`
	Error string `json:"error,omitempty"`

	// ready
	Tooltip bool `json:"tooltip,omitempty"`

	// hover
	Element json.RawMessage `json:"element,omitempty"`
	Hits    engine.Hits     `json:"hits"`

	// callback
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
