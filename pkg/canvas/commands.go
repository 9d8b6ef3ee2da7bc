package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/layout"
	"github.com/ha1tch/flowdesigner/pkg/rules"
)

var (
	ErrRejected       = errors.New("connection rejected")
	ErrNoSelection    = errors.New("nothing selected")
	ErrEmptyClipboard = errors.New("clipboard is empty")
	ErrBusy           = errors.New("interaction in progress")
	ErrBadPayload     = errors.New("invalid drop payload")
)

// validate is shared by every payload check.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nodekind", func(fl validator.FieldLevel) bool {
		return flow.Kind(fl.Field().String()).Valid()
	})
	return v
}

// Template describes a node dropped from a palette.
type Template struct {
	Type  string          `json:"type" validate:"required,nodekind"`
	Label string          `json:"label" validate:"max=120"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseTemplate decodes and validates a drop payload.
func ParseTemplate(payload []byte) (Template, error) {
	if !gjson.ValidBytes(payload) {
		return Template{}, fmt.Errorf("%w: not JSON", ErrBadPayload)
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return Template{}, fmt.Errorf("%w: expected an object", ErrBadPayload)
	}
	t := Template{
		Type:  doc.Get("type").String(),
		Label: doc.Get("label").String(),
	}
	if d := doc.Get("data"); d.Exists() && d.Type != gjson.Null {
		t.Data = json.RawMessage(d.Raw)
	}
	if err := validate.Struct(t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrBadPayload, formatValidationError(err))
	}
	return t, nil
}

func formatValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", e.Field())
	case "nodekind":
		return fmt.Errorf("%s: unknown node kind %q", e.Field(), e.Value())
	case "max":
		return fmt.Errorf("%s: must not exceed %s characters", e.Field(), e.Param())
	}
	return fmt.Errorf("%s: validation failed (%s)", e.Field(), e.Tag())
}

var kindLabels = map[flow.Kind]string{
	flow.KindStart:       "Start",
	flow.KindEnd:         "End",
	flow.KindPage:        "Page",
	flow.KindDecision:    "Decision",
	flow.KindCondition:   "Condition",
	flow.KindField:       "Field",
	flow.KindValidation:  "Validation",
	flow.KindCalculation: "Calculation",
	flow.KindAPICall:     "API Call",
	flow.KindDatabase:    "Database",
}

// DefaultLabel is the label given to a new node of kind k.
func DefaultLabel(k flow.Kind) string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// NodeFromTemplate builds a node for a template at canvas point p,
// snapped to the grid and clamped to the canvas.
func (c *Canvas) NodeFromTemplate(t Template, p geom.Point) (flow.Node, error) {
	kind, err := flow.ParseKind(t.Type)
	if err != nil {
		return flow.Node{}, err
	}
	data, err := flow.DecodeData(kind, t.Data)
	if err != nil {
		return flow.Node{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	label := strings.TrimSpace(t.Label)
	if label == "" {
		label = DefaultLabel(kind)
	}
	return flow.Node{
		ID:       flow.NewID(string(kind)),
		Kind:     kind,
		Label:    label,
		Position: layout.Place(p, c.opts.Grid),
		Data:     data,
	}, nil
}

// Drop places a template at a screen point.
func (c *Canvas) Drop(screen geom.Point, payload []byte) (flow.Node, error) {
	if c.Busy() {
		return flow.Node{}, ErrBusy
	}
	t, err := ParseTemplate(payload)
	if err != nil {
		c.feedback(err.Error(), false)
		return flow.Node{}, err
	}
	n, err := c.NodeFromTemplate(t, c.view.ScreenToCanvas(screen))
	if err != nil {
		c.feedback(err.Error(), false)
		return flow.Node{}, err
	}
	if err := c.AddNode(n); err != nil {
		return flow.Node{}, err
	}
	return n, nil
}

// AddNode inserts a node, selects it and announces it.
func (c *Canvas) AddNode(n flow.Node) error {
	if err := c.apply(func(f *flow.ServiceFlow) error { return f.AddNode(n) }); err != nil {
		c.feedback(err.Error(), false)
		return err
	}
	c.log.Debug("node added", "id", n.ID, "kind", n.Kind)
	c.updated(UpdateNodeAdded)
	c.selectNode(n.ID)
	return nil
}

// UpdateNode replaces a node's content, as from a property editor.
func (c *Canvas) UpdateNode(n flow.Node) error {
	if err := c.apply(func(f *flow.ServiceFlow) error { return f.UpdateNode(n) }); err != nil {
		c.feedback(err.Error(), false)
		return err
	}
	c.nodeEvent(EventNodeUpdated, n.ID)
	return nil
}

// MoveNode places a node at a canvas point, snapped and clamped.
func (c *Canvas) MoveNode(id string, p geom.Point) error {
	p = layout.Place(p, c.opts.Grid)
	if n, ok := c.flow.FindNode(id); ok && n.Position == p {
		return nil
	}
	if err := c.apply(func(f *flow.ServiceFlow) error { return f.MoveNode(id, p) }); err != nil {
		return err
	}
	c.nodeEvent(EventNodeUpdated, id)
	return nil
}

// DeleteNode removes a node and every connection touching it.
func (c *Canvas) DeleteNode(id string) error {
	var removed []flow.Connection
	err := c.apply(func(f *flow.ServiceFlow) error {
		var err error
		removed, err = f.RemoveNode(id)
		return err
	})
	if err != nil {
		return err
	}
	if c.selectedNode == id {
		c.selectedNode = ""
		c.emit(Event{Type: EventNodeSelected})
	}
	for _, conn := range removed {
		if c.selectedConn == conn.ID {
			c.selectedConn = ""
		}
		c.emit(Event{Type: EventConnectionDeleted, ConnectionID: conn.ID})
	}
	c.log.Debug("node deleted", "id", id, "connections", len(removed))
	c.emit(Event{Type: EventNodeDeleted, NodeID: id})
	return nil
}

// DeleteConnection removes a connection.
func (c *Canvas) DeleteConnection(id string) error {
	err := c.apply(func(f *flow.ServiceFlow) error {
		_, err := f.RemoveConnection(id)
		return err
	})
	if err != nil {
		return err
	}
	if c.selectedConn == id {
		c.selectedConn = ""
	}
	c.emit(Event{Type: EventConnectionDeleted, ConnectionID: id})
	return nil
}

// DeleteSelected removes the selected node or connection.
func (c *Canvas) DeleteSelected() error {
	switch {
	case c.selectedNode != "":
		return c.DeleteNode(c.selectedNode)
	case c.selectedConn != "":
		return c.DeleteConnection(c.selectedConn)
	}
	return ErrNoSelection
}

// Select selects a node by id; an empty id clears the selection.
func (c *Canvas) Select(id string) {
	if id == "" {
		c.clearSelection()
		return
	}
	c.selectNode(id)
}

func (c *Canvas) selectNode(id string) {
	if _, ok := c.flow.FindNode(id); !ok {
		return
	}
	c.selectedConn = ""
	if c.selectedNode == id {
		return
	}
	c.selectedNode = id
	c.nodeEvent(EventNodeSelected, id)
}

// SelectConnection selects a connection by id.
func (c *Canvas) SelectConnection(id string) {
	conn, ok := c.flow.FindConnection(id)
	if !ok {
		return
	}
	hadNode := c.selectedNode != ""
	c.selectedNode = ""
	if hadNode {
		c.emit(Event{Type: EventNodeSelected})
	}
	if c.selectedConn == id {
		return
	}
	c.selectedConn = id
	cp := *conn
	c.emit(Event{Type: EventConnectionSelected, Connection: &cp})
}

func (c *Canvas) clearSelection() {
	hadNode := c.selectedNode != ""
	c.selectedNode, c.selectedConn = "", ""
	if hadNode {
		c.emit(Event{Type: EventNodeSelected})
	}
}

// Copy puts a snapshot of the selected node on the clipboard.
func (c *Canvas) Copy() error {
	n, ok := c.flow.FindNode(c.selectedNode)
	if !ok {
		return ErrNoSelection
	}
	cp := n.Clone()
	c.board = &cp
	c.feedback(fmt.Sprintf("Copied %q", n.Label), true)
	return nil
}

// Paste adds a copy of the clipboard node offset from where the
// clipboard node was. Successive pastes cascade.
func (c *Canvas) Paste() (flow.Node, error) {
	if c.board == nil {
		return flow.Node{}, ErrEmptyClipboard
	}
	n := c.cloneAt(*c.board, c.board.Position.Add(c.opts.PasteOffset))
	if err := c.AddNode(n); err != nil {
		return flow.Node{}, err
	}
	c.board.Position = n.Position
	return n, nil
}

// PasteAt adds a copy of the clipboard node at a canvas point.
func (c *Canvas) PasteAt(p geom.Point) (flow.Node, error) {
	if c.board == nil {
		return flow.Node{}, ErrEmptyClipboard
	}
	n := c.cloneAt(*c.board, layout.Place(p, c.opts.Grid))
	if err := c.AddNode(n); err != nil {
		return flow.Node{}, err
	}
	return n, nil
}

// Duplicate copies the selected node next to itself without touching
// the clipboard.
func (c *Canvas) Duplicate() (flow.Node, error) {
	src, ok := c.flow.FindNode(c.selectedNode)
	if !ok {
		return flow.Node{}, ErrNoSelection
	}
	n := c.cloneAt(*src, src.Position.Add(c.opts.PasteOffset))
	if err := c.AddNode(n); err != nil {
		return flow.Node{}, err
	}
	return n, nil
}

func (c *Canvas) cloneAt(src flow.Node, p geom.Point) flow.Node {
	n := src.Clone()
	n.ID = flow.NewID(string(n.Kind))
	n.Position = layout.Clamp(p)
	return n
}

// ZoomIn zooms in one step.
func (c *Canvas) ZoomIn() {
	if c.view.ZoomIn() {
		c.updated(UpdateZoom)
	}
}

// ZoomOut zooms out one step.
func (c *Canvas) ZoomOut() {
	if c.view.ZoomOut() {
		c.updated(UpdateZoom)
	}
}

// ResetZoom restores zoom 1 without a pan.
func (c *Canvas) ResetZoom() {
	c.view.Reset()
	c.updated(UpdateZoom)
}

// FitToContent zooms and pans so every node is visible.
func (c *Canvas) FitToContent() {
	bounds, ok := c.flow.Bounds()
	if !ok {
		return
	}
	if c.view.FitToContent(bounds, c.size) {
		c.updated(UpdateFit)
	}
}

// AutoArrange lays the flow out in levels from its start nodes.
func (c *Canvas) AutoArrange() error {
	moved := 0
	err := c.apply(func(f *flow.ServiceFlow) error {
		var err error
		moved, err = layout.AutoArrange(f, c.opts.Layout)
		return err
	})
	if err != nil {
		c.feedback(err.Error(), false)
		return err
	}
	c.updated(UpdateAutoArrange)
	c.feedback(fmt.Sprintf("Arranged %d nodes", moved), true)
	return nil
}

// Suggest ranks likely next connections for a node.
func (c *Canvas) Suggest(id string) []rules.Suggestion {
	return c.rules.Suggest(c.flow, id)
}

// Nudge moves the selected node by whole grid steps.
func (c *Canvas) Nudge(dx, dy int) error {
	n, ok := c.flow.FindNode(c.selectedNode)
	if !ok {
		return ErrNoSelection
	}
	step := c.opts.Grid
	if step <= 0 {
		step = 1
	}
	return c.MoveNode(n.ID, n.Position.Add(geom.Pt(float64(dx)*step, float64(dy)*step)))
}
