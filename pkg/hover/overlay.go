package hover

import (
	"html"
	"sync"
)

// State is what the tooltip shows. Visible is true iff the last classified
// target was not None.
type State struct {
	Visible bool   `json:"visible"`
	Content string `json:"content"`
}

// lineBreak separates tooltip lines in Content.
const lineBreak = "<br/>"

// Render produces the tooltip state for t. Identifiers are HTML-escaped, so
// Content is safe to assign as markup.
func Render(t Target) State {
	switch t.Kind {
	case KindEdge:
		return State{
			Visible: true,
			Content: "Source ID: " + html.EscapeString(t.SourceID) + lineBreak +
				"Target ID: " + html.EscapeString(t.TargetID),
		}
	case KindNode:
		return State{Visible: true, Content: "ID: " + html.EscapeString(t.NodeID)}
	default:
		return State{}
	}
}

// Surface is the tooltip element an Overlay writes to.
type Surface interface {
	SetContent(markup string) error
	SetVisible(visible bool) error
}

// Overlay applies tooltip states to a Surface, skipping writes that would not
// change it. It is safe for concurrent use.
type Overlay struct {
	surface Surface

	mu      sync.Mutex
	state   State
	applied bool
}

// NewOverlay returns an overlay bound to s. The surface is assumed hidden and
// empty until the first Apply.
func NewOverlay(s Surface) *Overlay {
	return &Overlay{surface: s}
}

// State returns the last applied state.
func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Apply brings the surface to st. Content is written before visibility so a
// tooltip never flashes stale text. Unchanged parts are not written.
func (o *Overlay) Apply(st State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.applied || st.Content != o.state.Content {
		if err := o.surface.SetContent(st.Content); err != nil {
			return err
		}
		o.state.Content = st.Content
	}
	if !o.applied || st.Visible != o.state.Visible {
		if err := o.surface.SetVisible(st.Visible); err != nil {
			return err
		}
		o.state.Visible = st.Visible
	}
	o.applied = true
	return nil
}

// Handle classifies payload, renders it and applies the result.
func (o *Overlay) Handle(payload any) (Target, error) {
	t := Classify(payload)
	return t, o.Apply(Render(t))
}
