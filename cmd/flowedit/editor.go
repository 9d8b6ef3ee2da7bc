package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/flowdesigner/internal/config"
	"github.com/ha1tch/flowdesigner/pkg/autosave"
	"github.com/ha1tch/flowdesigner/pkg/backend"
	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/viewport"
)

// A terminal cell covers cellW x cellH canvas screen units, so a node is
// roughly 19 cells wide and 4 rows tall at zoom 1.
const (
	cellW = 8.0
	cellH = 16.0

	sidebarWidth = 28
)

// Mode represents editor mode. Canvas interaction modes live in the
// canvas itself.
type Mode int

const (
	ModeCanvas Mode = iota
	ModeInput       // prompt in the status bar
	ModeHelp        // help overlay
)

// MessageType for status messages
type MessageType int

const (
	MsgInfo    MessageType = iota // Informative, no flash
	MsgError                      // Errors, flash
	MsgSuccess                    // State changes, flash
	MsgWarning                    // Warnings, flash
)

// autosaveTick asks the loop to run one autosave check.
type autosaveTick struct{}

// Editor hosts a canvas on a tcell screen.
type Editor struct {
	screen tcell.Screen
	canvas *canvas.Canvas
	saver  *autosave.Saver
	cfg    *config.Config
	log    *slog.Logger

	pathMu   sync.Mutex // filename is read by the autosave goroutine
	filename string
	mode     Mode

	message           string
	messageType       MessageType
	messageFlashStart atomic.Int64 // Unix milliseconds when message was shown

	// Mouse buttons held at the previous mouse event.
	buttons tcell.ButtonMask
	pointer geom.Point // last pointer position, screen units

	// Palette: selected kind, and whether the next canvas click drops it.
	palette int
	armed   bool

	menuSelected int

	inputBuffer string
	inputPrompt string
	inputAction func(string)
}

func newEditor(screen tcell.Screen, f *flow.ServiceFlow, filename string, cfg *config.Config, logger *slog.Logger) *Editor {
	opts := cfg.CanvasOptions()
	opts.Logger = logger
	// A pointer is only known to the nearest cell.
	opts.PointRadius = math.Max(opts.PointRadius, cellH*0.75)
	opts.EdgeTolerance = math.Max(opts.EdgeTolerance, cellH*0.75)
	ed := &Editor{
		screen:   screen,
		canvas:   canvas.New(f, opts),
		cfg:      cfg,
		log:      logger,
		filename: filename,
		palette:  2, // page
	}
	ed.canvas.Subscribe(ed.onCanvasEvent)
	ed.saver = autosave.New(ed.canvas, ed.autosaveFunc(), autosave.Options{
		Timeout: cfg.API.Timeout.Std(),
		Logger:  logger,
		OnResult: func(r autosave.Result) {
			_ = screen.PostEvent(tcell.NewEventInterrupt(r))
		},
	})
	ed.resize()
	return ed
}

// autosaveFunc returns the configured save target.
func (ed *Editor) autosaveFunc() autosave.SaveFunc {
	if ed.cfg.Autosave.Target == "api" {
		opts := ed.cfg.BackendOptions()
		opts.Logger = ed.log
		client := backend.New(opts)
		return func(ctx context.Context, f *flow.ServiceFlow) error {
			_, err := client.ImportForm(ctx, f)
			return err
		}
	}
	return func(ctx context.Context, f *flow.ServiceFlow) error {
		return flowfile.Save(ed.targetPath(f), f)
	}
}

// targetPath is where the document is saved: the file it was opened
// from, or flow-<name>.json for a new one.
func (ed *Editor) targetPath(f *flow.ServiceFlow) string {
	ed.pathMu.Lock()
	defer ed.pathMu.Unlock()
	if ed.filename != "" {
		return ed.filename
	}
	return flowfile.ExportFilename(f)
}

func (ed *Editor) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		ed.saver.Wait()
	}()

	if ed.cfg.Autosave.Enabled {
		ed.saver.Start(ctx, ed.cfg.Autosave.Interval.Std(), func() {
			_ = ed.screen.PostEvent(tcell.NewEventInterrupt(autosaveTick{}))
		})
	}
	go func() {
		<-ctx.Done()
		_ = ed.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
	}()
	// Refresh while a message flashes.
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if elapsed := time.Now().UnixMilli() - ed.messageFlashStart.Load(); elapsed >= 0 && elapsed < 700 {
					_ = ed.screen.PostEvent(tcell.NewEventInterrupt(nil))
				}
			}
		}
	}()

	for {
		ed.draw()
		ed.screen.Show()

		switch ev := ed.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			ed.screen.Sync()
			ed.resize()
		case *tcell.EventKey:
			if ed.handleKey(ev) {
				return
			}
		case *tcell.EventMouse:
			ed.handleMouse(ev)
		case *tcell.EventInterrupt:
			if ed.handleInterrupt(ctx, ev.Data()) {
				return
			}
		}
	}
}

func (ed *Editor) handleInterrupt(ctx context.Context, data any) bool {
	switch d := data.(type) {
	case autosaveTick:
		ed.saver.Tick(ctx)
	case autosave.Result:
		if d.Err != nil {
			ed.showMessage("Autosave failed: "+d.Err.Error(), MsgError)
		} else {
			ed.showMessage("Autosaved at "+d.At.Format("15:04:05"), MsgInfo)
		}
	case error:
		return errors.Is(d, context.Canceled)
	}
	return false
}

// canvasArea returns the size of the canvas region in cells.
func (ed *Editor) canvasArea() (int, int) {
	w, h := ed.screen.Size()
	w -= sidebarWidth
	h-- // status bar
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w, h
}

func (ed *Editor) resize() {
	w, h := ed.canvasArea()
	ed.canvas.Handle(canvas.ResizeEvent{
		Size: geom.Pt(float64(w)*cellW, float64(h)*cellH),
	})
}

// cellToScreen returns the screen point at the centre of a cell.
func cellToScreen(x, y int) geom.Point {
	return geom.Pt((float64(x)+0.5)*cellW, (float64(y)+0.5)*cellH)
}

// screenToCell returns the cell containing a screen point.
func screenToCell(p geom.Point) (int, int) {
	return int(math.Floor(p.X / cellW)), int(math.Floor(p.Y / cellH))
}

func (ed *Editor) onCanvasEvent(e canvas.Event) {
	switch e.Type {
	case canvas.EventFeedback:
		if e.Success {
			ed.showMessage(e.Message, MsgSuccess)
		} else {
			ed.showMessage(e.Message, MsgWarning)
		}
	case canvas.EventNodeEdit:
		if e.Node != nil {
			ed.editLabel(*e.Node)
		}
	case canvas.EventNodeDeleted:
		ed.showMessage("Deleted "+e.NodeID, MsgSuccess)
	case canvas.EventConnectionCreated:
		ed.showMessage(fmt.Sprintf("Connected %s → %s", e.Connection.SourceID, e.Connection.TargetID), MsgSuccess)
	case canvas.EventCanvasUpdated:
		if e.Update == canvas.UpdateZoom {
			ed.showMessage(fmt.Sprintf("Zoom %.0f%%", e.Zoom*100), MsgInfo)
		}
	}
	if m, ok := ed.canvas.Menu(); !ok || m == nil {
		ed.menuSelected = 0
	}
}

// editLabel prompts for a new label for n.
func (ed *Editor) editLabel(n flow.Node) {
	ed.mode = ModeInput
	ed.inputPrompt = "Label: "
	ed.inputBuffer = n.Label
	ed.inputAction = func(label string) {
		n.Label = label
		if err := ed.canvas.UpdateNode(n); err != nil {
			ed.showMessage(err.Error(), MsgError)
		}
	}
}

func (ed *Editor) showMessage(msg string, msgType MessageType) {
	ed.message = msg
	ed.messageType = msgType
	ed.messageFlashStart.Store(time.Now().UnixMilli())
}

// Keyboard

func (ed *Editor) handleKey(ev *tcell.EventKey) bool {
	switch ed.mode {
	case ModeInput:
		ed.handleInputKey(ev)
		return false
	case ModeHelp:
		ed.mode = ModeCanvas
		return false
	}

	switch ev.Key() {
	case tcell.KeyCtrlQ:
		return true
	case tcell.KeyCtrlS:
		ed.save()
		return false
	case tcell.KeyF1:
		ed.mode = ModeHelp
		return false
	case tcell.KeyTab:
		ed.palette = (ed.palette + 1) % len(flow.Kinds)
		return false
	case tcell.KeyBacktab:
		ed.palette = (ed.palette + len(flow.Kinds) - 1) % len(flow.Kinds)
		return false
	}

	if m, ok := ed.canvas.Menu(); ok && m != nil {
		switch ev.Key() {
		case tcell.KeyUp:
			if ed.menuSelected > 0 {
				ed.menuSelected--
			}
			return false
		case tcell.KeyDown:
			if ed.menuSelected < len(m.Items)-1 {
				ed.menuSelected++
			}
			return false
		case tcell.KeyEnter:
			ed.canvas.Handle(canvas.MenuChoice{Index: ed.menuSelected})
			ed.menuSelected = 0
			return false
		}
	}

	if ev.Key() == tcell.KeyRune && !ed.canvas.Busy() {
		switch ev.Rune() {
		case 'q':
			return true
		case '?':
			ed.mode = ModeHelp
			return false
		case 'a':
			ed.dropPalette(ed.pointer)
			return false
		case 'e':
			if id, ok := ed.canvas.SelectedNode(); ok {
				if n, ok := ed.canvas.Flow().FindNode(id); ok {
					ed.editLabel(*n)
				}
			}
			return false
		}
	}

	if in, ok := translateKey(ev); ok {
		ed.canvas.Handle(in)
	}
	return false
}

// translateKey maps a terminal key to a canvas key event.
func translateKey(ev *tcell.EventKey) (canvas.KeyEvent, bool) {
	switch ev.Key() {
	case tcell.KeyEscape:
		return canvas.KeyEvent{Key: canvas.KeyEscape}, true
	case tcell.KeyDelete:
		return canvas.KeyEvent{Key: canvas.KeyDelete}, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return canvas.KeyEvent{Key: canvas.KeyBackspace}, true
	case tcell.KeyEnter:
		return canvas.KeyEvent{Key: canvas.KeyEnter}, true
	case tcell.KeyUp:
		return canvas.KeyEvent{Key: canvas.KeyUp}, true
	case tcell.KeyDown:
		return canvas.KeyEvent{Key: canvas.KeyDown}, true
	case tcell.KeyLeft:
		return canvas.KeyEvent{Key: canvas.KeyLeft}, true
	case tcell.KeyRight:
		return canvas.KeyEvent{Key: canvas.KeyRight}, true
	case tcell.KeyCtrlC:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'c', Ctrl: true}, true
	case tcell.KeyCtrlV:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'v', Ctrl: true}, true
	case tcell.KeyCtrlD:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'd', Ctrl: true}, true
	case tcell.KeyCtrlZ:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'z', Ctrl: true}, true
	case tcell.KeyCtrlY:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: 'y', Ctrl: true}, true
	case tcell.KeyRune:
		// Cmd+key arrives as Meta+rune on some macOS terminals.
		ctrl := ev.Modifiers()&(tcell.ModCtrl|tcell.ModMeta) != 0
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: ev.Rune(), Ctrl: ctrl}, true
	}
	return canvas.KeyEvent{}, false
}

func (ed *Editor) handleInputKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		ed.mode = ModeCanvas
		ed.inputAction = nil
	case tcell.KeyEnter:
		ed.mode = ModeCanvas
		if ed.inputAction != nil {
			ed.inputAction(ed.inputBuffer)
			ed.inputAction = nil
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if r := []rune(ed.inputBuffer); len(r) > 0 {
			ed.inputBuffer = string(r[:len(r)-1])
		}
	case tcell.KeyRune:
		ed.inputBuffer += string(ev.Rune())
	}
}

// Mouse

type buttonMap struct {
	mask   tcell.ButtonMask
	button canvas.Button
}

var mouseButtons = []buttonMap{
	{tcell.Button1, canvas.ButtonPrimary},
	{tcell.Button2, canvas.ButtonSecondary},
	{tcell.Button3, canvas.ButtonMiddle},
}

const heldButtons = tcell.Button1 | tcell.Button2 | tcell.Button3

// pointerInputs converts a terminal mouse report into canvas inputs.
// Terminals report button state, not transitions, so presses and
// releases are found by comparing with the previous report.
func (ed *Editor) pointerInputs(x, y int, buttons tcell.ButtonMask, mod tcell.ModMask) []canvas.Input {
	pos := cellToScreen(x, y)
	ed.pointer = pos

	switch {
	case buttons&tcell.WheelUp != 0:
		return []canvas.Input{canvas.WheelEvent{Pos: pos, Delta: viewport.ZoomStep}}
	case buttons&tcell.WheelDown != 0:
		return []canvas.Input{canvas.WheelEvent{Pos: pos, Delta: -viewport.ZoomStep}}
	}

	prev := ed.buttons
	ed.buttons = buttons & heldButtons
	shift := mod&tcell.ModShift != 0

	var inputs []canvas.Input
	for _, b := range mouseButtons {
		was, is := prev&b.mask != 0, buttons&b.mask != 0
		switch {
		case is && !was:
			inputs = append(inputs, canvas.PointerEvent{Action: canvas.PointerDown, Pos: pos, Button: b.button, Shift: shift})
		case was && !is:
			inputs = append(inputs, canvas.PointerEvent{Action: canvas.PointerUp, Pos: pos, Button: b.button, Shift: shift})
		}
	}
	if len(inputs) == 0 {
		inputs = append(inputs, canvas.PointerEvent{Action: canvas.PointerMove, Pos: pos, Shift: shift})
	}
	return inputs
}

func (ed *Editor) handleMouse(ev *tcell.EventMouse) {
	if ed.mode != ModeCanvas {
		return
	}
	x, y := ev.Position()
	buttons := ev.Buttons()
	cw, ch := ed.canvasArea()
	pressed := buttons&tcell.Button1 != 0 && ed.buttons&tcell.Button1 == 0

	// A fresh click outside the canvas belongs to the sidebar; a gesture
	// already under way keeps feeding the canvas wherever the pointer goes.
	if ed.buttons == 0 && (x >= cw || y >= ch) {
		if pressed {
			ed.clickSidebar(x-cw, y)
		}
		ed.buttons = buttons & heldButtons
		return
	}

	if pressed {
		if i, ok := ed.menuItemAt(x, y); ok {
			ed.buttons = buttons & heldButtons
			ed.canvas.Handle(canvas.MenuChoice{Index: i})
			ed.menuSelected = 0
			return
		}
		if ed.armed {
			ed.armed = false
			ed.buttons = buttons & heldButtons
			ed.dropPalette(cellToScreen(x, y))
			return
		}
	}

	for _, in := range ed.pointerInputs(x, y, buttons, ev.Modifiers()) {
		ed.canvas.Handle(in)
	}
}

// paletteRow is the first sidebar row listing node kinds.
const paletteRow = 2

func (ed *Editor) clickSidebar(col, row int) {
	if col < 0 {
		return
	}
	i := row - paletteRow
	if i < 0 || i >= len(flow.Kinds) {
		return
	}
	ed.palette = i
	ed.armed = true
	ed.showMessage("Click the canvas to place a "+canvas.DefaultLabel(flow.Kinds[i])+" node", MsgInfo)
}

// dropPalette places the selected palette kind at a screen point.
func (ed *Editor) dropPalette(pos geom.Point) {
	payload, err := paletteTemplate(flow.Kinds[ed.palette])
	if err != nil {
		ed.showMessage(err.Error(), MsgError)
		return
	}
	ed.canvas.Handle(canvas.DropEvent{Pos: pos, Payload: payload})
}

// paletteTemplate encodes a drop payload for kind k.
func paletteTemplate(k flow.Kind) ([]byte, error) {
	return json.Marshal(canvas.Template{Type: string(k), Label: canvas.DefaultLabel(k)})
}

// menuItemAt returns the context menu entry drawn at a cell.
func (ed *Editor) menuItemAt(x, y int) (int, bool) {
	m, ok := ed.canvas.Menu()
	if !ok || m == nil {
		return 0, false
	}
	mx, my, w, _ := ed.menuRect(m)
	i := y - my - 1
	if x <= mx || x >= mx+w-1 || i < 0 || i >= len(m.Items) {
		return 0, false
	}
	return i, true
}

// Files

func (ed *Editor) save() {
	f := ed.canvas.Flow()
	path := ed.targetPath(f)
	if err := flowfile.Save(path, f); err != nil {
		ed.log.Error("save failed", "path", path, "error", err)
		ed.showMessage("Save failed: "+err.Error(), MsgError)
		return
	}
	ed.pathMu.Lock()
	ed.filename = path
	ed.pathMu.Unlock()
	ed.saver.MarkSaved(ed.canvas.Revision())
	ed.log.Info("flow saved", "path", path)
	ed.showMessage("Saved "+path, MsgSuccess)
}

// dirty reports whether the document changed since it was last saved.
func (ed *Editor) dirty() bool {
	return ed.saver.Dirty(ed.canvas.Revision())
}
