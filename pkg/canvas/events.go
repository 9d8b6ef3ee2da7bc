package canvas

import "github.com/ha1tch/flowdesigner/pkg/flow"

// EventType names an outbound notification.
type EventType string

const (
	EventNodeSelected       EventType = "node-selected"
	EventNodeDeleted        EventType = "node-deleted"
	EventNodeUpdated        EventType = "node-updated"
	EventNodeEdit           EventType = "node-edit"
	EventConnectionCreated  EventType = "connection-created"
	EventConnectionDeleted  EventType = "connection-deleted"
	EventConnectionSelected EventType = "connection-selected"
	EventCanvasUpdated      EventType = "canvas-updated"
	EventFeedback           EventType = "feedback"
)

// Update says what a canvas-updated event changed.
type Update string

const (
	UpdateZoom        Update = "zoom"
	UpdatePan         Update = "pan"
	UpdateFit         Update = "fit"
	UpdateAutoArrange Update = "auto-arrange"
	UpdateNodeAdded   Update = "node-added"
	UpdateUndo        Update = "undo"
	UpdateRedo        Update = "redo"
	UpdateLoaded      Update = "loaded"
)

// Event is an outbound notification for the hosting shell. Only the
// fields relevant to Type are set.
type Event struct {
	Type         EventType
	Node         *flow.Node // node-selected (nil clears), node-updated, node-edit
	NodeID       string     // node-deleted
	Connection   *flow.Connection
	ConnectionID string // connection-deleted
	Update       Update
	Zoom         float64
	Message      string
	Success      bool
}

// Subscribe registers fn for every outbound event. Handlers run
// synchronously on the goroutine driving the canvas.
func (c *Canvas) Subscribe(fn func(Event)) {
	c.subscribers = append(c.subscribers, fn)
}

func (c *Canvas) emit(e Event) {
	for _, fn := range c.subscribers {
		fn(e)
	}
}

func (c *Canvas) feedback(msg string, success bool) {
	c.emit(Event{Type: EventFeedback, Message: msg, Success: success})
}

func (c *Canvas) updated(u Update) {
	c.emit(Event{Type: EventCanvasUpdated, Update: u, Zoom: c.view.Zoom})
}

func (c *Canvas) nodeEvent(t EventType, id string) {
	if n, ok := c.flow.FindNode(id); ok {
		cp := n.Clone()
		c.emit(Event{Type: t, Node: &cp})
	}
}
