package canvas

import (
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/layout"
)

// Handle is the transition function: it applies one input to the
// current mode.
func (c *Canvas) Handle(in Input) {
	switch ev := in.(type) {
	case PointerEvent:
		c.handlePointer(ev)
	case KeyEvent:
		c.handleKey(ev)
	case WheelEvent:
		c.handleWheel(ev)
	case DropEvent:
		_, _ = c.Drop(ev.Pos, ev.Payload)
	case ResizeEvent:
		c.view.Origin = ev.Origin
		c.size = ev.Size
	case MenuChoice:
		_ = c.ChooseMenuItem(ev.Index)
	}
}

func (c *Canvas) handlePointer(ev PointerEvent) {
	switch ev.Action {
	case PointerDown:
		c.pointerDown(ev)
	case PointerMove:
		c.pointerMove(ev)
	case PointerUp:
		c.pointerUp(ev)
	}
}

func (c *Canvas) pointerDown(ev PointerEvent) {
	if c.mode != ModeIdle {
		return
	}
	if c.menu != nil {
		c.menu = nil
		return
	}

	switch ev.Button {
	case ButtonSecondary:
		c.openMenu(ev.Pos)
		return
	case ButtonMiddle:
		c.beginPan(ev.Pos)
		return
	}

	p := c.view.ScreenToCanvas(ev.Pos)
	switch h := c.hitTest(p); h.kind {
	case hitPoint:
		c.beginDraw(h.point, p)
	case hitNode:
		c.selectNode(h.node)
		c.beginDrag(h.node, ev.Pos)
	case hitEdge:
		c.SelectConnection(h.conn)
	default:
		c.clearSelection()
		c.beginPan(ev.Pos)
	}
}

func (c *Canvas) pointerMove(ev PointerEvent) {
	switch c.mode {
	case ModeDraggingNode:
		c.trackDrag(ev)
	case ModePanning:
		c.view.Pan = c.pan.orig.Add(c.view.ScreenDelta(ev.Pos.Sub(c.pan.start)))
		c.pan.moved = true
	case ModeDrawingConnection:
		c.trackDraw(c.view.ScreenToCanvas(ev.Pos))
	}
}

func (c *Canvas) pointerUp(ev PointerEvent) {
	switch c.mode {
	case ModeDraggingNode:
		c.trackDrag(ev)
		c.finishDrag()
	case ModePanning:
		moved := c.pan.moved
		c.pan = panState{}
		c.mode = ModeIdle
		if moved {
			c.updated(UpdatePan)
		}
	case ModeDrawingConnection:
		c.finishDraw(c.view.ScreenToCanvas(ev.Pos))
	}
}

func (c *Canvas) beginPan(screen geom.Point) {
	c.mode = ModePanning
	c.pan = panState{start: screen, orig: c.view.Pan}
}

func (c *Canvas) beginDrag(id string, screen geom.Point) {
	n, ok := c.flow.FindNode(id)
	if !ok {
		return
	}
	c.mode = ModeDraggingNode
	c.drag = dragState{
		id:     id,
		anchor: screen.Sub(c.view.CanvasToScreen(n.Position)),
		orig:   n.Position,
		before: c.flow.Clone(),
	}
}

// trackDrag moves the dragged node under the pointer. The node follows
// live; the move becomes an undoable change only when the drag ends.
// Holding shift suspends grid snapping.
func (c *Canvas) trackDrag(ev PointerEvent) {
	p := c.view.ScreenToCanvas(ev.Pos.Sub(c.drag.anchor))
	if ev.Shift {
		p = layout.Clamp(p)
	} else {
		p = layout.Place(p, c.opts.Grid)
	}
	_ = c.flow.MoveNode(c.drag.id, p)
}

func (c *Canvas) finishDrag() {
	d := c.drag
	c.drag = dragState{}
	c.mode = ModeIdle

	n, ok := c.flow.FindNode(d.id)
	if !ok || n.Position == d.orig {
		return
	}
	c.commit(d.before)
	c.log.Debug("node moved", "id", d.id, "x", n.Position.X, "y", n.Position.Y)
	c.nodeEvent(EventNodeUpdated, d.id)
}

func (c *Canvas) handleKey(ev KeyEvent) {
	if ev.Key == KeyEscape {
		c.escape()
		return
	}
	if c.mode != ModeIdle {
		return
	}

	if ev.Ctrl {
		switch ev.Rune {
		case 'c':
			_ = c.Copy()
		case 'v':
			_, _ = c.Paste()
		case 'd':
			_, _ = c.Duplicate()
		case 'z':
			c.Undo()
		case 'y':
			c.Redo()
		}
		return
	}

	switch ev.Key {
	case KeyDelete, KeyBackspace:
		_ = c.DeleteSelected()
	case KeyUp:
		c.arrow(0, -1)
	case KeyDown:
		c.arrow(0, 1)
	case KeyLeft:
		c.arrow(-1, 0)
	case KeyRight:
		c.arrow(1, 0)
	case KeyRune:
		switch ev.Rune {
		case '+', '=':
			c.ZoomIn()
		case '-':
			c.ZoomOut()
		case '0':
			c.ResetZoom()
		case 'f':
			c.FitToContent()
		case 'l':
			_ = c.AutoArrange()
		}
	}
}

// arrow nudges the selected node, or pans when nothing is selected.
func (c *Canvas) arrow(dx, dy int) {
	if c.selectedNode != "" {
		_ = c.Nudge(dx, dy)
		return
	}
	step := c.opts.Grid
	if step <= 0 {
		step = 20
	}
	c.view.Pan = c.view.Pan.Sub(geom.Pt(float64(dx)*step, float64(dy)*step))
	c.updated(UpdatePan)
}

// escape abandons the current interaction, or closes the menu, or
// clears the selection, whichever applies first.
func (c *Canvas) escape() {
	switch {
	case c.menu != nil:
		c.menu = nil
	case c.mode != ModeIdle:
		panning := c.mode == ModePanning
		c.cancel()
		if panning {
			c.updated(UpdatePan)
		}
	default:
		c.clearSelection()
	}
}

func (c *Canvas) handleWheel(ev WheelEvent) {
	if c.mode != ModeIdle {
		return
	}
	if c.view.ZoomAtWheel(ev.Pos, ev.Delta) {
		c.updated(UpdateZoom)
	}
}
