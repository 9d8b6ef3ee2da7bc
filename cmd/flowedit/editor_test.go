package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/flowdesigner/internal/config"
	"github.com/ha1tch/flowdesigner/internal/logging"
	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

func newTestEditor(t *testing.T, filename string) (*Editor, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	sim.SetSize(120, 40)
	t.Cleanup(sim.Fini)

	cfg := config.Default()
	cfg.Autosave.Enabled = false
	return newEditor(sim, flow.New("Test"), filename, cfg, logging.Discard()), sim
}

func click(ed *Editor, x, y int, button tcell.ButtonMask) {
	ed.handleMouse(tcell.NewEventMouse(x, y, button, tcell.ModNone))
	ed.handleMouse(tcell.NewEventMouse(x, y, tcell.ButtonNone, tcell.ModNone))
}

func key(ed *Editor, k tcell.Key, r rune) bool {
	return ed.handleKey(tcell.NewEventKey(k, r, tcell.ModNone))
}

func typeText(ed *Editor, s string) {
	for _, r := range s {
		key(ed, tcell.KeyRune, r)
	}
}

func screenText(sim tcell.SimulationScreen) string {
	cells, w, h := sim.GetContents()
	var sb strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			runes := cells[y*w+x].Runes
			if len(runes) == 0 {
				sb.WriteRune(' ')
				continue
			}
			sb.WriteRune(runes[0])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

func TestCellMapping(t *testing.T) {
	for _, c := range [][2]int{{0, 0}, {5, 3}, {91, 38}} {
		x, y := screenToCell(cellToScreen(c[0], c[1]))
		if x != c[0] || y != c[1] {
			t.Errorf("cell %v maps back to (%d,%d)", c, x, y)
		}
	}
	if p := cellToScreen(2, 1); p != geom.Pt(20, 24) {
		t.Errorf("cellToScreen(2,1) = %v", p)
	}
}

func TestPointerInputs(t *testing.T) {
	ed, _ := newTestEditor(t, "")

	got := ed.pointerInputs(1, 1, tcell.Button1, tcell.ModShift)
	down, ok := got[0].(canvas.PointerEvent)
	if len(got) != 1 || !ok || down.Action != canvas.PointerDown || down.Button != canvas.ButtonPrimary || !down.Shift {
		t.Fatalf("press: %+v", got)
	}

	got = ed.pointerInputs(4, 1, tcell.Button1, tcell.ModNone)
	if ev, ok := got[0].(canvas.PointerEvent); !ok || ev.Action != canvas.PointerMove || ev.Pos != cellToScreen(4, 1) {
		t.Fatalf("drag: %+v", got)
	}

	got = ed.pointerInputs(4, 1, tcell.ButtonNone, tcell.ModNone)
	if ev, ok := got[0].(canvas.PointerEvent); !ok || ev.Action != canvas.PointerUp {
		t.Fatalf("release: %+v", got)
	}

	got = ed.pointerInputs(3, 3, tcell.Button2, tcell.ModNone)
	if ev, ok := got[0].(canvas.PointerEvent); !ok || ev.Button != canvas.ButtonSecondary {
		t.Fatalf("right press: %+v", got)
	}
	ed.pointerInputs(3, 3, tcell.ButtonNone, tcell.ModNone)

	got = ed.pointerInputs(3, 3, tcell.WheelUp, tcell.ModNone)
	if ev, ok := got[0].(canvas.WheelEvent); !ok || ev.Delta <= 0 {
		t.Fatalf("wheel up: %+v", got)
	}
	got = ed.pointerInputs(3, 3, tcell.WheelDown, tcell.ModNone)
	if ev, ok := got[0].(canvas.WheelEvent); !ok || ev.Delta >= 0 {
		t.Fatalf("wheel down: %+v", got)
	}
}

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		key  tcell.Key
		r    rune
		want canvas.KeyEvent
	}{
		{tcell.KeyEscape, 0, canvas.KeyEvent{Key: canvas.KeyEscape}},
		{tcell.KeyDelete, 0, canvas.KeyEvent{Key: canvas.KeyDelete}},
		{tcell.KeyBackspace2, 0, canvas.KeyEvent{Key: canvas.KeyBackspace}},
		{tcell.KeyLeft, 0, canvas.KeyEvent{Key: canvas.KeyLeft}},
		{tcell.KeyCtrlZ, 0, canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'z', Ctrl: true}},
		{tcell.KeyCtrlV, 0, canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'v', Ctrl: true}},
		{tcell.KeyRune, '+', canvas.KeyEvent{Key: canvas.KeyRune, Rune: '+'}},
	}
	for _, tt := range tests {
		got, ok := translateKey(tcell.NewEventKey(tt.key, tt.r, tcell.ModNone))
		if !ok || got != tt.want {
			t.Errorf("key %v %q: got %+v, %v", tt.key, tt.r, got, ok)
		}
	}
	if _, ok := translateKey(tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone)); ok {
		t.Error("F5 should not reach the canvas")
	}
}

func TestMouseDragMovesNode(t *testing.T) {
	ed, _ := newTestEditor(t, "")

	// start-1 covers (100,100)-(250,160); cell (18,8) is inside it.
	ed.handleMouse(tcell.NewEventMouse(18, 8, tcell.Button1, tcell.ModNone))
	if ed.canvas.Mode() != canvas.ModeDraggingNode {
		t.Fatalf("mode = %s, want dragging", ed.canvas.Mode())
	}
	ed.handleMouse(tcell.NewEventMouse(30, 8, tcell.Button1, tcell.ModNone))
	ed.handleMouse(tcell.NewEventMouse(30, 8, tcell.ButtonNone, tcell.ModNone))

	n, _ := ed.canvas.Flow().FindNode("start-1")
	if n.Position != geom.Pt(200, 100) {
		t.Errorf("position = %v, want (200,100)", n.Position)
	}
	if !ed.canvas.CanUndo() {
		t.Error("drag should be undoable")
	}
	if !ed.dirty() {
		t.Error("editor should be dirty after a move")
	}
}

func TestMouseDrawsConnection(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	page := flow.Node{ID: "p1", Kind: flow.KindPage, Label: "Details", Position: geom.Pt(100, 300)}
	if err := ed.canvas.AddNode(page); err != nil {
		t.Fatal(err)
	}

	// The start output sits at (175,160), the page input at (175,300).
	ed.handleMouse(tcell.NewEventMouse(21, 9, tcell.Button1, tcell.ModNone))
	if ed.canvas.Mode() != canvas.ModeDrawingConnection {
		t.Fatalf("mode = %s, want connecting", ed.canvas.Mode())
	}
	ed.handleMouse(tcell.NewEventMouse(21, 18, tcell.Button1, tcell.ModNone))
	ed.handleMouse(tcell.NewEventMouse(21, 18, tcell.ButtonNone, tcell.ModNone))

	if !ed.canvas.Flow().HasEdge("start-1", "p1") {
		t.Fatal("connection not created")
	}
	if ed.messageType != MsgSuccess {
		t.Errorf("message %q has type %d", ed.message, ed.messageType)
	}
}

func TestPaletteClickDropsNode(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	cw, _ := ed.canvasArea()

	click(ed, cw+3, paletteRow+3, tcell.Button1) // decision
	if !ed.armed || flow.Kinds[ed.palette] != flow.KindDecision {
		t.Fatalf("palette = %d armed = %v", ed.palette, ed.armed)
	}

	click(ed, 50, 25, tcell.Button1)
	if ed.armed {
		t.Error("palette should disarm after a drop")
	}
	decisions := ed.canvas.Flow().OfKind(flow.KindDecision)
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	if decisions[0].Label != "Decision" {
		t.Errorf("label = %q", decisions[0].Label)
	}
}

func TestPaletteKeys(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	ed.palette = len(flow.Kinds) - 1
	key(ed, tcell.KeyTab, 0)
	if ed.palette != 0 {
		t.Errorf("tab wraps to %d", ed.palette)
	}
	key(ed, tcell.KeyBacktab, 0)
	if ed.palette != len(flow.Kinds)-1 {
		t.Errorf("backtab wraps to %d", ed.palette)
	}

	ed.palette = 2
	ed.pointer = cellToScreen(40, 20)
	key(ed, tcell.KeyRune, 'a')
	if got := len(ed.canvas.Flow().OfKind(flow.KindPage)); got != 1 {
		t.Errorf("pages = %d, want 1", got)
	}
}

func TestEditLabel(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	ed.canvas.Select("start-1")

	key(ed, tcell.KeyRune, 'e')
	if ed.mode != ModeInput || ed.inputBuffer != "Start" {
		t.Fatalf("mode = %d buffer = %q", ed.mode, ed.inputBuffer)
	}
	for range "Start" {
		key(ed, tcell.KeyBackspace2, 0)
	}
	typeText(ed, "Begin")
	key(ed, tcell.KeyEnter, 0)

	if ed.mode != ModeCanvas {
		t.Error("enter should leave input mode")
	}
	n, _ := ed.canvas.Flow().FindNode("start-1")
	if n.Label != "Begin" {
		t.Errorf("label = %q", n.Label)
	}

	key(ed, tcell.KeyRune, 'e')
	typeText(ed, "xyz")
	key(ed, tcell.KeyEscape, 0)
	if n, _ := ed.canvas.Flow().FindNode("start-1"); n.Label != "Begin" {
		t.Errorf("escape changed label to %q", n.Label)
	}
}

func TestContextMenu(t *testing.T) {
	ed, sim := newTestEditor(t, "")

	click(ed, 18, 8, tcell.Button2)
	m, ok := ed.canvas.Menu()
	if !ok || m == nil {
		t.Fatal("menu not open")
	}
	ed.draw()
	sim.Show()
	if !strings.Contains(screenText(sim), "Duplicate") {
		t.Error("menu not drawn")
	}

	key(ed, tcell.KeyDown, 0)
	key(ed, tcell.KeyEnter, 0)
	if got := len(ed.canvas.Flow().Nodes); got != 2 {
		t.Errorf("nodes = %d, want 2 after duplicate", got)
	}
	if m, ok := ed.canvas.Menu(); ok && m != nil {
		t.Error("menu should close after a choice")
	}
}

func TestDrawShowsFlow(t *testing.T) {
	ed, sim := newTestEditor(t, "")
	ed.draw()
	sim.Show()
	text := screenText(sim)

	for _, want := range []string{"▶ Start", "Palette", "Issues (", "Flow has no end node", "[New]"} {
		if !strings.Contains(text, want) {
			t.Errorf("screen lacks %q", want)
		}
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	ed, _ := newTestEditor(t, path)
	ed.canvas.Select("start-1")
	if err := ed.canvas.Nudge(1, 0); err != nil {
		t.Fatal(err)
	}
	if !ed.dirty() {
		t.Fatal("expected dirty editor")
	}

	key(ed, tcell.KeyCtrlS, 0)
	if ed.dirty() {
		t.Error("editor still dirty after save")
	}
	f, err := flowfile.Load(path)
	if err != nil {
		t.Fatalf("load saved file: %v", err)
	}
	if n, _ := f.FindNode("start-1"); n.Position.X == 100 {
		t.Error("saved file lacks the nudge")
	}
}

func TestAutosaveTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto.json")
	ed, _ := newTestEditor(t, path)
	ctx := context.Background()

	ed.handleInterrupt(ctx, autosaveTick{})
	ed.saver.Wait()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("clean document should not be autosaved")
	}

	ed.canvas.Select("start-1")
	if err := ed.canvas.Nudge(0, 1); err != nil {
		t.Fatal(err)
	}
	ed.handleInterrupt(ctx, autosaveTick{})
	ed.saver.Wait()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("autosave did not write: %v", err)
	}
	if ed.dirty() {
		t.Error("editor still dirty after autosave")
	}
}

func TestQuitKeys(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	if !key(ed, tcell.KeyCtrlQ, 0) {
		t.Error("Ctrl+Q should quit")
	}
	if !key(ed, tcell.KeyRune, 'q') {
		t.Error("q should quit")
	}
	ed.mode = ModeInput
	if key(ed, tcell.KeyRune, 'q') {
		t.Error("q while typing should not quit")
	}
}

func TestFlashInverted(t *testing.T) {
	// normal(0-125) -> inverted(125-250) -> normal(250-375) -> inverted(375-500) -> normal(500+)
	tests := []struct {
		elapsed int64
		want    bool
	}{
		{-1, false},
		{0, false},
		{124, false},
		{125, true},
		{249, true},
		{250, false},
		{374, false},
		{375, true},
		{499, true},
		{500, false},
		{1000, false},
	}
	for _, tt := range tests {
		if got := flashInverted(tt.elapsed); got != tt.want {
			t.Errorf("elapsed=%d: got %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestMessageStyle(t *testing.T) {
	if messageStyle(MsgInfo, 200) != styleMsgInfo {
		t.Error("info messages don't flash")
	}
	if messageStyle(MsgError, 200) == styleMsgError {
		t.Error("errors flash")
	}
	if messageStyle(MsgError, 600) != styleMsgError {
		t.Error("flash ends after 500ms")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated", 5, "trun…"},
		{"Émile", 3, "Ém…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
