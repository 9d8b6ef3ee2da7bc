package canvas

import (
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// MenuAction identifies a context menu command.
type MenuAction string

const (
	ActionEdit             MenuAction = "edit"
	ActionDuplicate        MenuAction = "duplicate"
	ActionCopy             MenuAction = "copy"
	ActionDelete           MenuAction = "delete"
	ActionDeleteConnection MenuAction = "delete-connection"
	ActionPaste            MenuAction = "paste"
	ActionFit              MenuAction = "fit"
	ActionArrange          MenuAction = "arrange"
)

// MenuItem is one entry of a context menu.
type MenuItem struct {
	Label  string
	Action MenuAction
}

// Menu is an open context menu. Pos is where it was opened on screen,
// At the same point in canvas space.
type Menu struct {
	Pos          geom.Point
	At           geom.Point
	NodeID       string
	ConnectionID string
	Items        []MenuItem
}

var (
	nodeMenu = []MenuItem{
		{"Edit", ActionEdit},
		{"Duplicate", ActionDuplicate},
		{"Copy", ActionCopy},
		{"Delete", ActionDelete},
	}
	connectionMenu = []MenuItem{
		{"Delete connection", ActionDeleteConnection},
	}
	backgroundMenu = []MenuItem{
		{"Paste", ActionPaste},
		{"Fit to screen", ActionFit},
		{"Auto arrange", ActionArrange},
	}
)

// openMenu opens the context menu for whatever lies under the pointer,
// selecting it first.
func (c *Canvas) openMenu(screen geom.Point) {
	p := c.view.ScreenToCanvas(screen)
	m := &Menu{Pos: screen, At: p}

	switch h := c.hitTest(p); h.kind {
	case hitPoint, hitNode:
		c.selectNode(h.node)
		m.NodeID = h.node
		m.Items = nodeMenu
	case hitEdge:
		c.SelectConnection(h.conn)
		m.ConnectionID = h.conn
		m.Items = connectionMenu
	default:
		c.clearSelection()
		m.Items = backgroundMenu
	}
	c.menu = m
}

// CloseMenu dismisses the context menu.
func (c *Canvas) CloseMenu() {
	c.menu = nil
}

// ChooseMenuItem runs the i-th item of the open menu and closes it.
func (c *Canvas) ChooseMenuItem(i int) error {
	m := c.menu
	if m == nil || i < 0 || i >= len(m.Items) {
		return nil
	}
	c.menu = nil

	switch m.Items[i].Action {
	case ActionEdit:
		c.nodeEvent(EventNodeEdit, m.NodeID)
	case ActionDuplicate:
		c.selectNode(m.NodeID)
		_, err := c.Duplicate()
		return err
	case ActionCopy:
		c.selectNode(m.NodeID)
		return c.Copy()
	case ActionDelete:
		return c.DeleteNode(m.NodeID)
	case ActionDeleteConnection:
		return c.DeleteConnection(m.ConnectionID)
	case ActionPaste:
		_, err := c.PasteAt(m.At)
		if err != nil {
			c.feedback("Clipboard is empty", false)
		}
		return err
	case ActionFit:
		c.FitToContent()
	case ActionArrange:
		return c.AutoArrange()
	}
	return nil
}
