package canvas

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

type recorder struct {
	events []Event
}

func (r *recorder) record(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t EventType) (Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *recorder) reset() {
	r.events = nil
}

// newTestCanvas returns a canvas over start(100,100), page A(300,200)
// and end(600,200), with no connections.
func newTestCanvas(t *testing.T, conns ...flow.Connection) (*Canvas, *recorder) {
	t.Helper()
	f := flow.New("test")
	for _, n := range []flow.Node{
		{ID: "A", Kind: flow.KindPage, Label: "A", Position: geom.Pt(300, 200)},
		{ID: "end", Kind: flow.KindEnd, Label: "End", Position: geom.Pt(600, 200)},
	} {
		if err := f.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range conns {
		if err := f.AddConnection(c); err != nil {
			t.Fatal(err)
		}
	}
	c := New(f, DefaultOptions())
	r := &recorder{}
	c.Subscribe(r.record)
	return c, r
}

func down(x, y float64) PointerEvent {
	return PointerEvent{Action: PointerDown, Pos: geom.Pt(x, y)}
}

func move(x, y float64) PointerEvent {
	return PointerEvent{Action: PointerMove, Pos: geom.Pt(x, y)}
}

func up(x, y float64) PointerEvent {
	return PointerEvent{Action: PointerUp, Pos: geom.Pt(x, y)}
}

func ctrl(r rune) KeyEvent {
	return KeyEvent{Key: KeyRune, Rune: r, Ctrl: true}
}

func position(t *testing.T, c *Canvas, id string) geom.Point {
	t.Helper()
	n, ok := c.Flow().FindNode(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	return n.Position
}

func TestDragSnapsAndCommitsOnce(t *testing.T) {
	c, r := newTestCanvas(t)
	rev := c.Revision()

	c.Handle(down(310, 210))
	if c.Mode() != ModeDraggingNode {
		t.Fatalf("Mode = %v, want dragging", c.Mode())
	}
	if id, _ := c.SelectedNode(); id != "A" {
		t.Errorf("selected %q, want A", id)
	}

	c.Handle(move(318, 212))
	c.Handle(move(323, 217))
	if got := position(t, c, "A"); got != geom.Pt(320, 200) {
		t.Errorf("A during drag at %v, want (320,200)", got)
	}
	if n := r.count(EventNodeUpdated); n != 0 {
		t.Errorf("node-updated emitted %d times during drag", n)
	}
	if c.Revision() != rev {
		t.Error("revision changed before drag ended")
	}

	c.Handle(up(323, 217))
	if c.Mode() != ModeIdle {
		t.Errorf("Mode = %v after release", c.Mode())
	}
	if n := r.count(EventNodeUpdated); n != 1 {
		t.Fatalf("node-updated emitted %d times, want 1", n)
	}
	e, _ := r.last(EventNodeUpdated)
	if e.Node.Position != geom.Pt(320, 200) {
		t.Errorf("event position %v", e.Node.Position)
	}
	if c.Revision() != rev+1 {
		t.Errorf("Revision = %d, want %d", c.Revision(), rev+1)
	}

	if !c.Undo() {
		t.Fatal("Undo failed")
	}
	if got := position(t, c, "A"); got != geom.Pt(300, 200) {
		t.Errorf("A after undo at %v", got)
	}
	if !c.Redo() {
		t.Fatal("Redo failed")
	}
	if got := position(t, c, "A"); got != geom.Pt(320, 200) {
		t.Errorf("A after redo at %v", got)
	}
}

func TestClickWithoutMoveDoesNotUpdate(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Handle(down(310, 210))
	c.Handle(up(310, 210))
	if r.count(EventNodeUpdated) != 0 {
		t.Error("click emitted node-updated")
	}
	if r.count(EventNodeSelected) != 1 {
		t.Error("click did not select")
	}
	if c.CanUndo() {
		t.Error("click recorded an undo step")
	}
}

func TestDragUnderZoomAndClamp(t *testing.T) {
	c, _ := newTestCanvas(t)
	c.Viewport().SetZoom(2)
	c.Viewport().Pan = geom.Pt(-100, -100)

	// A's screen position is ((300-100)*2, (200-100)*2) = (400,200).
	c.Handle(down(410, 210))
	c.Handle(move(450, 250)) // +40 screen = +20 canvas
	c.Handle(up(450, 250))
	if got := position(t, c, "A"); got != geom.Pt(320, 220) {
		t.Errorf("A at %v, want (320,220)", got)
	}

	c.Handle(down(450, 250))
	c.Handle(move(-5000, -5000))
	c.Handle(up(-5000, -5000))
	if got := position(t, c, "A"); got != geom.Pt(0, 0) {
		t.Errorf("A at %v, want clamp to origin", got)
	}
}

func TestEscapeRevertsDrag(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Handle(down(310, 210))
	c.Handle(move(500, 500))
	c.Handle(KeyEvent{Key: KeyEscape})

	if c.Mode() != ModeIdle {
		t.Errorf("Mode = %v", c.Mode())
	}
	if got := position(t, c, "A"); got != geom.Pt(300, 200) {
		t.Errorf("A at %v after escape", got)
	}
	c.Handle(up(500, 500))
	if r.count(EventNodeUpdated) != 0 || c.CanUndo() {
		t.Error("escaped drag was committed")
	}
}

func TestBackgroundPans(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Handle(down(310, 210))
	c.Handle(up(310, 210))
	r.reset()

	c.Handle(down(1000, 1000))
	if c.Mode() != ModePanning {
		t.Fatalf("Mode = %v, want panning", c.Mode())
	}
	if e, ok := r.last(EventNodeSelected); !ok || e.Node != nil {
		t.Error("background press should clear the selection")
	}
	c.Handle(move(1100, 1050))
	if c.Viewport().Pan != geom.Pt(100, 50) {
		t.Errorf("Pan = %v", c.Viewport().Pan)
	}
	c.Handle(up(1100, 1050))
	if c.Mode() != ModeIdle {
		t.Errorf("Mode = %v", c.Mode())
	}
	if e, ok := r.last(EventCanvasUpdated); !ok || e.Update != UpdatePan {
		t.Errorf("expected a pan update, got %+v", e)
	}

	c.Handle(down(1000, 1000))
	c.Handle(move(1200, 1200))
	c.Handle(KeyEvent{Key: KeyEscape})
	if c.Viewport().Pan != geom.Pt(100, 50) {
		t.Errorf("escape did not restore pan: %v", c.Viewport().Pan)
	}
}

func TestDrawConnection(t *testing.T) {
	c, r := newTestCanvas(t)

	c.Handle(down(175, 160)) // start's output glyph
	if c.Mode() != ModeDrawingConnection {
		t.Fatalf("Mode = %v, want connecting", c.Mode())
	}
	d, _ := c.Drawing()
	if !d.ValidTargets()["A"].Valid || d.ValidTargets()["end"].Valid {
		t.Errorf("valid targets wrong: %+v", d.ValidTargets())
	}

	c.Handle(move(250, 180))
	if d.Snapped() || d.End() != geom.Pt(250, 180) {
		t.Errorf("preview should follow the pointer, ends at %v", d.End())
	}

	c.Handle(move(380, 210))
	if !d.Snapped() || d.End() != geom.Pt(375, 200) {
		t.Errorf("preview should snap to A's input, ends at %v", d.End())
	}

	c.Handle(up(380, 210))
	if c.Mode() != ModeIdle {
		t.Errorf("Mode = %v", c.Mode())
	}
	if _, ok := c.Drawing(); ok {
		t.Error("draw state not cleared")
	}
	if len(c.Flow().Connections) != 1 {
		t.Fatalf("Expected 1 connection, got %d", len(c.Flow().Connections))
	}
	e, ok := r.last(EventConnectionCreated)
	if !ok {
		t.Fatal("no connection-created event")
	}
	conn := e.Connection
	if conn.SourceID != "start-1" || conn.TargetID != "A" {
		t.Errorf("connection %+v", conn)
	}
	if conn.Label != "Start → A" {
		t.Errorf("Label = %q", conn.Label)
	}
	if !strings.HasPrefix(conn.ID, "conn-") {
		t.Errorf("ID = %q", conn.ID)
	}
	if fb, _ := r.last(EventFeedback); !fb.Success {
		t.Errorf("feedback %+v", fb)
	}
}

func TestDrawRejectedConnection(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Handle(down(175, 160))
	c.Handle(move(680, 205))
	d, _ := c.Drawing()
	if d.Snapped() {
		t.Error("invalid target must not snap")
	}
	if d.Target == nil || d.Verdict.Valid {
		t.Errorf("expected an invalid verdict for end, got %+v", d.Verdict)
	}
	c.Handle(up(680, 205))

	if len(c.Flow().Connections) != 0 {
		t.Error("rejected connection was created")
	}
	fb, ok := r.last(EventFeedback)
	if !ok || fb.Success {
		t.Fatalf("expected failure feedback, got %+v", fb)
	}
	if !strings.Contains(fb.Message, "Start cannot connect directly to End") {
		t.Errorf("Message = %q", fb.Message)
	}
}

func TestDrawReleasedOnNothing(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Handle(down(175, 160))
	c.Handle(move(900, 900))
	c.Handle(up(900, 900))

	if len(c.Flow().Connections) != 0 || c.Mode() != ModeIdle {
		t.Error("release on empty canvas should discard the draw")
	}
	if r.count(EventFeedback) != 0 {
		t.Error("silent discard emitted feedback")
	}

	c.Handle(down(175, 160))
	c.Handle(move(380, 210))
	c.Handle(KeyEvent{Key: KeyEscape})
	if _, ok := c.Drawing(); ok || c.Mode() != ModeIdle {
		t.Error("escape did not cancel the draw")
	}
	c.Handle(up(380, 210))
	if len(c.Flow().Connections) != 0 {
		t.Error("escaped draw created a connection")
	}
}

func TestDrawNamedOutput(t *testing.T) {
	c, r := newTestCanvas(t)
	_ = c.AddNode(flow.Node{ID: "D", Kind: flow.KindDecision, Label: "D", Position: geom.Pt(500, 400)})
	_ = c.AddNode(flow.Node{ID: "B", Kind: flow.KindPage, Label: "B", Position: geom.Pt(500, 600)})

	c.Handle(down(600, 460)) // D's second output
	c.Handle(up(575, 600))   // B's input

	e, ok := r.last(EventConnectionCreated)
	if !ok {
		t.Fatal("no connection created")
	}
	if e.Connection.Label != "No" || e.Connection.Condition != "false" {
		t.Errorf("connection %+v", e.Connection)
	}
}

func TestSelectAndDeleteConnection(t *testing.T) {
	c, r := newTestCanvas(t, flow.Connection{ID: "c1", SourceID: "start-1", TargetID: "A"})

	c.Handle(down(275, 180)) // midpoint of the start -> A curve
	c.Handle(up(275, 180))
	if id, ok := c.SelectedConnection(); !ok || id != "c1" {
		t.Fatalf("selected connection %q", id)
	}
	if r.count(EventConnectionSelected) != 1 {
		t.Error("no connection-selected event")
	}

	c.Handle(KeyEvent{Key: KeyDelete})
	if len(c.Flow().Connections) != 0 {
		t.Error("connection not deleted")
	}
	if e, _ := r.last(EventConnectionDeleted); e.ConnectionID != "c1" {
		t.Errorf("deleted event %+v", e)
	}
}

func TestDeleteNodeCascades(t *testing.T) {
	c, r := newTestCanvas(t,
		flow.Connection{ID: "c1", SourceID: "start-1", TargetID: "A"},
		flow.Connection{ID: "c2", SourceID: "A", TargetID: "end"},
	)
	c.Select("A")
	c.Handle(KeyEvent{Key: KeyBackspace})

	if _, ok := c.Flow().FindNode("A"); ok {
		t.Fatal("A not deleted")
	}
	if len(c.Flow().Connections) != 0 {
		t.Errorf("connections left: %+v", c.Flow().Connections)
	}
	if r.count(EventConnectionDeleted) != 2 || r.count(EventNodeDeleted) != 1 {
		t.Errorf("events: %+v", r.events)
	}
	if _, ok := c.SelectedNode(); ok {
		t.Error("selection survived deletion")
	}

	c.Undo()
	if len(c.Flow().Connections) != 2 {
		t.Error("undo did not restore connections")
	}
}

func TestCopyPasteDuplicate(t *testing.T) {
	c, _ := newTestCanvas(t)

	if _, err := c.Paste(); !errors.Is(err, ErrEmptyClipboard) {
		t.Errorf("paste with empty clipboard: %v", err)
	}

	c.Select("A")
	c.Handle(ctrl('c'))
	c.Handle(ctrl('v'))
	first, _ := c.SelectedNode()
	if first == "A" || !strings.HasPrefix(first, "page-") {
		t.Fatalf("pasted id %q", first)
	}
	if got := position(t, c, first); got != geom.Pt(350, 250) {
		t.Errorf("first paste at %v", got)
	}

	c.Handle(ctrl('v'))
	second, _ := c.SelectedNode()
	if second == first {
		t.Fatal("second paste reused the id")
	}
	if got := position(t, c, second); got != geom.Pt(400, 300) {
		t.Errorf("second paste at %v", got)
	}

	c.Select("A")
	c.Handle(ctrl('d'))
	dup, _ := c.SelectedNode()
	if dup == "A" || position(t, c, dup) != geom.Pt(350, 250) {
		t.Errorf("duplicate %q at %v", dup, position(t, c, dup))
	}
	n, _ := c.Flow().FindNode(dup)
	if n.Label != "A" || n.Kind != flow.KindPage {
		t.Errorf("duplicate content %+v", n)
	}
	if len(c.Flow().Nodes) != 6 {
		t.Errorf("node count = %d", len(c.Flow().Nodes))
	}
}

func TestFailedCommandLeavesFlowUnchanged(t *testing.T) {
	c, r := newTestCanvas(t)
	rev := c.Revision()
	before := len(c.Flow().Nodes)

	err := c.AddNode(flow.Node{ID: "A", Kind: flow.KindPage, Label: "dup"})
	if !errors.Is(err, flow.ErrNodeExists) {
		t.Errorf("got %v", err)
	}
	if len(c.Flow().Nodes) != before || c.Revision() != rev || c.CanUndo() {
		t.Error("failed command changed state")
	}
	if fb, ok := r.last(EventFeedback); !ok || fb.Success {
		t.Error("expected failure feedback")
	}
}

func TestUndoLimit(t *testing.T) {
	c, _ := newTestCanvas(t)
	for i := 0; i < 60; i++ {
		_ = c.MoveNode("A", geom.Pt(float64(300+20*(i%2+1)), 200))
	}
	if len(c.undo) != c.opts.UndoLimit {
		t.Errorf("undo depth = %d, want %d", len(c.undo), c.opts.UndoLimit)
	}
	_ = c.MoveNode("A", geom.Pt(1000, 1000))
	c.Undo()
	if !c.CanRedo() {
		t.Error("redo not available after undo")
	}
	_ = c.MoveNode("A", geom.Pt(1200, 1000))
	if c.CanRedo() {
		t.Error("new change should clear redo")
	}
}

func TestDrop(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Viewport().SetZoom(2)

	c.Handle(DropEvent{Pos: geom.Pt(413, 507), Payload: []byte(`{"type":"decision","label":"Age?","data":{"question":"Over 18?"}}`)})
	id, ok := c.SelectedNode()
	if !ok {
		t.Fatal("dropped node not selected")
	}
	n, _ := c.Flow().FindNode(id)
	if n.Kind != flow.KindDecision || n.Label != "Age?" {
		t.Errorf("node %+v", n)
	}
	if n.Position != geom.Pt(200, 260) {
		t.Errorf("Position = %v, want (200,260)", n.Position)
	}
	if d, ok := n.Data.(flow.DecisionData); !ok || d.Question != "Over 18?" {
		t.Errorf("Data = %#v", n.Data)
	}
	if e, ok := r.last(EventCanvasUpdated); !ok || e.Update != UpdateNodeAdded {
		t.Errorf("expected node-added update, got %+v", e)
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `nope`},
		{"array", `[1,2]`},
		{"missing type", `{"label":"x"}`},
		{"unknown kind", `{"type":"widget"}`},
		{"bad data", `{"type":"page","data":{"fields":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := len(c.Flow().Nodes)
			_, err := c.Drop(geom.Pt(10, 10), []byte(tt.payload))
			if !errors.Is(err, ErrBadPayload) {
				t.Errorf("got %v, want ErrBadPayload", err)
			}
			if len(c.Flow().Nodes) != count {
				t.Error("bad payload added a node")
			}
		})
	}
}

func TestDropDefaultLabel(t *testing.T) {
	c, _ := newTestCanvas(t)
	n, err := c.Drop(geom.Pt(800, 800), []byte(`{"type":"api_call"}`))
	if err != nil {
		t.Fatal(err)
	}
	if n.Label != "API Call" {
		t.Errorf("Label = %q", n.Label)
	}
}

func TestZoomInputs(t *testing.T) {
	c, r := newTestCanvas(t)

	c.Handle(KeyEvent{Key: KeyRune, Rune: '+'})
	if c.Viewport().Zoom != 1.25 {
		t.Errorf("Zoom = %v", c.Viewport().Zoom)
	}
	if e, _ := r.last(EventCanvasUpdated); e.Update != UpdateZoom || e.Zoom != 1.25 {
		t.Errorf("update %+v", e)
	}

	anchor := c.Viewport().ScreenToCanvas(geom.Pt(400, 300))
	c.Handle(WheelEvent{Pos: geom.Pt(400, 300), Delta: 0.5})
	if c.Viewport().Zoom != 1.75 {
		t.Errorf("Zoom = %v", c.Viewport().Zoom)
	}
	if got := c.Viewport().ScreenToCanvas(geom.Pt(400, 300)); !got.Near(anchor, 1e-9) {
		t.Errorf("wheel moved the anchor from %v to %v", anchor, got)
	}

	c.Handle(ResizeEvent{Size: geom.Pt(800, 600)})
	c.Handle(KeyEvent{Key: KeyRune, Rune: 'f'})
	if e, _ := r.last(EventCanvasUpdated); e.Update != UpdateFit {
		t.Errorf("update %+v", e)
	}
	bounds, _ := c.Flow().Bounds()
	for _, p := range []geom.Point{bounds.Min, bounds.Max} {
		s := c.Viewport().CanvasToScreen(p)
		if s.X < -1e-9 || s.Y < -1e-9 || s.X > 800+1e-9 || s.Y > 600+1e-9 {
			t.Errorf("fit left %v off screen at %v", p, s)
		}
	}
}

func TestAutoArrangeKey(t *testing.T) {
	c, r := newTestCanvas(t,
		flow.Connection{ID: "c1", SourceID: "start-1", TargetID: "A"},
		flow.Connection{ID: "c2", SourceID: "A", TargetID: "end"},
	)
	c.Handle(KeyEvent{Key: KeyRune, Rune: 'l'})
	if e, _ := r.last(EventCanvasUpdated); e.Update != UpdateAutoArrange {
		t.Fatalf("update %+v", e)
	}
	if a, s := position(t, c, "A"), position(t, c, "start-1"); a.X <= s.X || a.Y != s.Y {
		t.Errorf("start at %v, A at %v", s, a)
	}
	c.Undo()
	if got := position(t, c, "A"); got != geom.Pt(300, 200) {
		t.Errorf("undo of arrange left A at %v", got)
	}
}

func TestArrowNudge(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Select("A")
	c.Handle(KeyEvent{Key: KeyRight})
	c.Handle(KeyEvent{Key: KeyDown})
	if got := position(t, c, "A"); got != geom.Pt(320, 220) {
		t.Errorf("A at %v", got)
	}
	if r.count(EventNodeUpdated) != 2 {
		t.Errorf("node-updated count %d", r.count(EventNodeUpdated))
	}
}

func TestContextMenu(t *testing.T) {
	c, r := newTestCanvas(t)

	c.Handle(PointerEvent{Action: PointerDown, Pos: geom.Pt(310, 210), Button: ButtonSecondary})
	m, ok := c.Menu()
	if !ok || m.NodeID != "A" {
		t.Fatalf("menu %+v", m)
	}
	if m.Items[1].Action != ActionDuplicate {
		t.Fatalf("items %+v", m.Items)
	}
	c.Handle(MenuChoice{Index: 1})
	if _, ok := c.Menu(); ok {
		t.Error("menu still open")
	}
	if len(c.Flow().Nodes) != 4 {
		t.Errorf("duplicate from menu: %d nodes", len(c.Flow().Nodes))
	}

	c.Handle(PointerEvent{Action: PointerDown, Pos: geom.Pt(1000, 1000), Button: ButtonSecondary})
	m, _ = c.Menu()
	if m.NodeID != "" || m.Items[0].Action != ActionPaste {
		t.Fatalf("background menu %+v", m)
	}
	r.reset()
	if err := c.ChooseMenuItem(0); !errors.Is(err, ErrEmptyClipboard) {
		t.Errorf("paste from menu: %v", err)
	}
	if fb, _ := r.last(EventFeedback); fb.Success {
		t.Error("expected failure feedback")
	}

	c.Handle(PointerEvent{Action: PointerDown, Pos: geom.Pt(310, 210), Button: ButtonSecondary})
	c.Handle(down(1000, 1000))
	if _, ok := c.Menu(); ok {
		t.Error("press outside did not close the menu")
	}
	if c.Mode() != ModeIdle {
		t.Error("press that closed the menu started an interaction")
	}

	c.Handle(PointerEvent{Action: PointerDown, Pos: geom.Pt(310, 210), Button: ButtonSecondary})
	c.Handle(MenuChoice{Index: 0})
	if e, ok := r.last(EventNodeEdit); !ok || e.Node.ID != "A" {
		t.Errorf("edit event %+v", e)
	}
}

func TestLoadReplacesDocument(t *testing.T) {
	c, r := newTestCanvas(t)
	c.Select("A")
	_ = c.MoveNode("A", geom.Pt(400, 400))

	c.Load(flow.New("other"))
	if c.Flow().Name != "other" || c.CanUndo() {
		t.Error("load did not replace the document")
	}
	if _, ok := c.SelectedNode(); ok {
		t.Error("selection survived load")
	}
	if e, _ := r.last(EventCanvasUpdated); e.Update != UpdateLoaded {
		t.Errorf("update %+v", e)
	}
}

func TestIssuesTrackChanges(t *testing.T) {
	c, _ := newTestCanvas(t)
	if len(c.Issues()) == 0 {
		t.Fatal("unconnected flow should have issues")
	}
	_, _ = c.Connect(flow.ConnectionPoint{NodeID: "start-1", Direction: flow.Output},
		flow.ConnectionPoint{NodeID: "A", Direction: flow.Input})
	_, _ = c.Connect(flow.ConnectionPoint{NodeID: "A", Direction: flow.Output},
		flow.ConnectionPoint{NodeID: "end", Direction: flow.Input})
	if issues := c.Issues(); len(issues) != 0 {
		t.Errorf("connected flow issues: %v", issues)
	}

	_, err := c.Connect(flow.ConnectionPoint{NodeID: "start-1", Direction: flow.Output},
		flow.ConnectionPoint{NodeID: "end", Direction: flow.Input})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("start -> end: %v", err)
	}
}

func TestRunFeedsEvents(t *testing.T) {
	c, _ := newTestCanvas(t)
	src := make(ChanSource, 3)
	src <- down(310, 210)
	src <- up(310, 210)
	src <- KeyEvent{Key: KeyRune, Rune: '+'}
	close(src)

	if err := c.Run(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if id, _ := c.SelectedNode(); id != "A" {
		t.Errorf("selected %q", id)
	}
	if c.Viewport().Zoom != 1.25 {
		t.Errorf("Zoom = %v", c.Viewport().Zoom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx, make(ChanSource)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled run: %v", err)
	}
}

func TestEdgePath(t *testing.T) {
	c, _ := newTestCanvas(t, flow.Connection{ID: "c1", SourceID: "start-1", TargetID: "A"})
	p, ok := EdgePath(c.Flow(), c.Flow().Connections[0])
	if !ok {
		t.Fatal("no path")
	}
	want := Path{
		From: geom.Pt(175, 160),
		C1:   geom.Pt(175, 180),
		C2:   geom.Pt(375, 180),
		To:   geom.Pt(375, 200),
	}
	if p != want {
		t.Errorf("path %+v, want %+v", p, want)
	}
	if p.Midpoint() != geom.Pt(275, 180) {
		t.Errorf("midpoint %v", p.Midpoint())
	}
}
