// Package canvas is the interactive flow editor core: a single-goroutine
// state machine that turns pointer, key, wheel and drop inputs into
// flow commands, viewport changes and outbound events.
//
// Inputs are plain values so the machine can be driven from a terminal
// host, a test, or any other EventSource. Every graph mutation goes
// through one choke point that snapshots the flow for undo, restores it
// on failure and re-runs the integrity checks.
package canvas

import (
	"io"
	"log/slog"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/integrity"
	"github.com/ha1tch/flowdesigner/pkg/layout"
	"github.com/ha1tch/flowdesigner/pkg/rules"
	"github.com/ha1tch/flowdesigner/pkg/viewport"
)

// Mode is the active interaction. Modes are mutually exclusive.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDraggingNode
	ModePanning
	ModeDrawingConnection
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDraggingNode:
		return "dragging"
	case ModePanning:
		return "panning"
	case ModeDrawingConnection:
		return "connecting"
	}
	return "unknown"
}

// Options tunes the interaction geometry.
type Options struct {
	Grid          float64    // snap increment; 0 disables snapping
	SnapRadius    float64    // connection snap distance, canvas units
	PointRadius   float64    // connection-point glyph hit radius
	EdgeTolerance float64    // edge hit distance
	PasteOffset   geom.Point // applied to pasted and duplicated nodes
	UndoLimit     int
	Layout        layout.Options
	Rules         *rules.Engine
	Logger        *slog.Logger
}

// DefaultOptions returns the standard editor settings.
func DefaultOptions() Options {
	return Options{
		Grid:          layout.DefaultGrid,
		SnapRadius:    25,
		PointRadius:   8,
		EdgeTolerance: 6,
		PasteOffset:   geom.Pt(50, 50),
		UndoLimit:     50,
		Layout:        layout.DefaultOptions(),
	}
}

// Canvas owns the document being edited. It is not safe for concurrent
// use; drive it from one goroutine.
type Canvas struct {
	flow  *flow.ServiceFlow
	view  *viewport.Viewport
	rules *rules.Engine
	opts  Options
	log   *slog.Logger

	mode Mode
	size geom.Point // screen size of the canvas widget

	selectedNode string
	selectedConn string

	drag  dragState
	pan   panState
	draw  *Draw
	menu  *Menu
	board *flow.Node // clipboard

	undo     []*flow.ServiceFlow
	redo     []*flow.ServiceFlow
	revision uint64
	issues   []integrity.Issue

	subscribers []func(Event)
}

type dragState struct {
	id     string
	anchor geom.Point // pointer minus node screen position
	orig   geom.Point
	before *flow.ServiceFlow
}

type panState struct {
	start geom.Point // screen
	orig  geom.Point // viewport pan at start
	moved bool
}

// New returns a canvas editing f. A nil flow starts a fresh document.
func New(f *flow.ServiceFlow, opts Options) *Canvas {
	if f == nil {
		f = flow.New("")
	}
	if opts.Rules == nil {
		opts.Rules = rules.NewEngine(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.UndoLimit <= 0 {
		opts.UndoLimit = 50
	}
	c := &Canvas{
		flow:  f,
		view:  viewport.New(),
		rules: opts.Rules,
		opts:  opts,
		log:   opts.Logger,
		size:  geom.Pt(1200, 800),
	}
	c.issues = integrity.All(f)
	return c
}

// Flow returns the live document. Callers must not mutate it.
func (c *Canvas) Flow() *flow.ServiceFlow { return c.flow }

// Snapshot returns a deep copy of the document.
func (c *Canvas) Snapshot() *flow.ServiceFlow { return c.flow.Clone() }

// Viewport returns the view transform.
func (c *Canvas) Viewport() *viewport.Viewport { return c.view }

// Rules returns the connection rules engine.
func (c *Canvas) Rules() *rules.Engine { return c.rules }

// Mode returns the active interaction.
func (c *Canvas) Mode() Mode { return c.mode }

// Busy reports whether an interaction is in progress.
func (c *Canvas) Busy() bool { return c.mode != ModeIdle }

// Size returns the canvas widget's screen size.
func (c *Canvas) Size() geom.Point { return c.size }

// Revision increases with every committed change to the document.
func (c *Canvas) Revision() uint64 { return c.revision }

// Issues returns the integrity findings for the current document.
func (c *Canvas) Issues() []integrity.Issue { return c.issues }

// SelectedNode returns the selected node id, if any.
func (c *Canvas) SelectedNode() (string, bool) {
	return c.selectedNode, c.selectedNode != ""
}

// SelectedConnection returns the selected connection id, if any.
func (c *Canvas) SelectedConnection() (string, bool) {
	return c.selectedConn, c.selectedConn != ""
}

// Drawing returns the in-progress connection draw, if any.
func (c *Canvas) Drawing() (*Draw, bool) {
	return c.draw, c.draw != nil
}

// Menu returns the open context menu, if any.
func (c *Canvas) Menu() (*Menu, bool) {
	return c.menu, c.menu != nil
}

// Clipboard returns the copied node, if any.
func (c *Canvas) Clipboard() (flow.Node, bool) {
	if c.board == nil {
		return flow.Node{}, false
	}
	return c.board.Clone(), true
}

// CanUndo reports whether there is a change to undo.
func (c *Canvas) CanUndo() bool { return len(c.undo) > 0 }

// CanRedo reports whether there is an undone change to redo.
func (c *Canvas) CanRedo() bool { return len(c.redo) > 0 }

// Load replaces the document wholesale. Any interaction in progress is
// abandoned and the undo history is cleared.
func (c *Canvas) Load(f *flow.ServiceFlow) {
	c.cancel()
	c.flow = f
	c.undo, c.redo = nil, nil
	c.selectedNode, c.selectedConn = "", ""
	c.menu = nil
	c.revision++
	c.issues = integrity.All(f)
	c.log.Info("flow loaded", "name", f.Name, "nodes", len(f.Nodes), "connections", len(f.Connections))
	c.updated(UpdateLoaded)
}

// apply runs a graph command as one undoable step. On error the document
// is restored from the snapshot and nothing is recorded.
func (c *Canvas) apply(fn func(f *flow.ServiceFlow) error) error {
	before := c.flow.Clone()
	if err := fn(c.flow); err != nil {
		c.flow = before
		c.log.Debug("command rejected", "error", err)
		return err
	}
	c.commit(before)
	return nil
}

// commit records before as the undo point for the current document.
func (c *Canvas) commit(before *flow.ServiceFlow) {
	c.undo = append(c.undo, before)
	if len(c.undo) > c.opts.UndoLimit {
		c.undo = c.undo[1:]
	}
	c.redo = nil
	c.touch()
}

func (c *Canvas) touch() {
	c.revision++
	c.issues = integrity.All(c.flow)
}

// Undo reverts the last committed change.
func (c *Canvas) Undo() bool {
	if len(c.undo) == 0 || c.Busy() {
		return false
	}
	c.redo = append(c.redo, c.flow)
	c.flow = c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]
	c.afterHistory()
	c.updated(UpdateUndo)
	return true
}

// Redo reapplies the last undone change.
func (c *Canvas) Redo() bool {
	if len(c.redo) == 0 || c.Busy() {
		return false
	}
	c.undo = append(c.undo, c.flow)
	c.flow = c.redo[len(c.redo)-1]
	c.redo = c.redo[:len(c.redo)-1]
	c.afterHistory()
	c.updated(UpdateRedo)
	return true
}

func (c *Canvas) afterHistory() {
	if _, ok := c.flow.FindNode(c.selectedNode); !ok {
		c.selectedNode = ""
	}
	if _, ok := c.flow.FindConnection(c.selectedConn); !ok {
		c.selectedConn = ""
	}
	c.touch()
}

// cancel abandons the current interaction without committing it.
func (c *Canvas) cancel() {
	switch c.mode {
	case ModeDraggingNode:
		if c.drag.before != nil {
			c.flow = c.drag.before
		}
	case ModePanning:
		c.view.Pan = c.pan.orig
	}
	c.drag = dragState{}
	c.pan = panState{}
	c.draw = nil
	c.mode = ModeIdle
}
