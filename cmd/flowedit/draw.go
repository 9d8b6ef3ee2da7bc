package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/integrity"
)

// Styles
var (
	styleDefault    = tcell.StyleDefault
	styleMenu       = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleMenuSel    = tcell.StyleDefault.Background(tcell.ColorBlue).Foreground(tcell.ColorWhite)
	styleNode       = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleNodeSel    = tcell.StyleDefault.Background(tcell.ColorGreen).Foreground(tcell.ColorBlack)
	styleNodeDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleNodeTarget = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleKind       = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePort       = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleEdge       = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleEdgeSel    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleEdgeLabel  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleDrawing    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(200, 162, 200)) // Lilac
	styleSnapped    = tcell.StyleDefault.Foreground(tcell.ColorLime)
	styleSidebar    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleSidebarH   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleWarn       = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleErr        = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleStatus     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleMsgInfo    = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleMsgError   = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy).Bold(true)
	styleMsgWarning = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorNavy)
	styleMsgSuccess = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleInput      = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	styleBorder     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// edgeSamples is the number of segments a curve is flattened into.
const edgeSamples = 48

func (ed *Editor) draw() {
	ed.screen.Clear()
	w, h := ed.screen.Size()
	cw, ch := ed.canvasArea()

	f := ed.canvas.Flow()
	for _, c := range f.Connections {
		ed.drawConnection(f, c, cw, ch)
	}
	ed.drawPreview(cw, ch)
	issues := ed.canvas.Issues()
	for _, n := range f.Nodes {
		ed.drawNode(n, integrity.Worst(issues, n.ID), cw, ch)
	}

	ed.drawSidebar(w, h)
	if m, ok := ed.canvas.Menu(); ok && m != nil {
		ed.drawMenu(m)
	}
	if ed.mode == ModeHelp {
		ed.drawHelp(w, h)
	}
	ed.drawStatusBar(w, h)
}

// setCell writes one cell, clipped to the canvas region.
func (ed *Editor) setCell(x, y int, r rune, style tcell.Style, cw, ch int) {
	if x < 0 || y < 0 || x >= cw || y >= ch {
		return
	}
	ed.screen.SetContent(x, y, r, nil, style)
}

func (ed *Editor) cellOf(p geom.Point) (int, int) {
	return screenToCell(ed.canvas.Viewport().CanvasToScreen(p))
}

func (ed *Editor) drawNode(n flow.Node, worst integrity.Severity, cw, ch int) {
	r := n.Rect()
	x0, y0 := ed.cellOf(r.Min)
	x1, y1 := ed.cellOf(r.Max)
	if x1-x0 < 4 {
		x1 = x0 + 4
	}
	if y1-y0 < 2 {
		y1 = y0 + 2
	}

	style := styleNode
	selected, _ := ed.canvas.SelectedNode()
	if d, ok := ed.canvas.Drawing(); ok && d != nil && n.ID != d.Source.NodeID {
		style = styleNodeDim
		if v, ok := d.ValidTargets()[n.ID]; ok && v.Valid {
			style = styleNodeTarget
		}
	}

	// Border
	ed.setCell(x0, y0, '┌', style, cw, ch)
	ed.setCell(x1, y0, '┐', style, cw, ch)
	ed.setCell(x0, y1, '└', style, cw, ch)
	ed.setCell(x1, y1, '┘', style, cw, ch)
	for x := x0 + 1; x < x1; x++ {
		ed.setCell(x, y0, '─', style, cw, ch)
		ed.setCell(x, y1, '─', style, cw, ch)
	}
	fill := styleDefault
	if n.ID == selected {
		fill = styleNodeSel
	}
	for y := y0 + 1; y < y1; y++ {
		ed.setCell(x0, y, '│', style, cw, ch)
		ed.setCell(x1, y, '│', style, cw, ch)
		for x := x0 + 1; x < x1; x++ {
			ed.setCell(x, y, ' ', fill, cw, ch)
		}
	}

	inner := x1 - x0 - 1
	label := string(n.Kind.Glyph()) + " " + n.Label
	ed.drawClipped(x0+1, y0+1, truncate(label, inner), fill, cw, ch)
	if y1-y0 > 2 {
		kindStyle := styleKind
		if n.ID == selected {
			kindStyle = styleNodeSel
		}
		ed.drawClipped(x0+1, y0+2, truncate(string(n.Kind), inner), kindStyle, cw, ch)
	}

	switch worst {
	case integrity.Error:
		ed.setCell(x1, y0, '!', styleErr, cw, ch)
	case integrity.Warning:
		ed.setCell(x1, y0, '!', styleWarn, cw, ch)
	}

	for _, p := range flow.PointsFor(n) {
		x, y := ed.cellOf(p.Position)
		glyph := '●'
		if p.Direction == flow.Input {
			glyph = '○'
		}
		ed.setCell(x, y, glyph, stylePort, cw, ch)
	}
}

func (ed *Editor) drawConnection(f *flow.ServiceFlow, c flow.Connection, cw, ch int) {
	path, ok := canvas.EdgePath(f, c)
	if !ok {
		return
	}
	style := styleEdge
	if id, ok := ed.canvas.SelectedConnection(); ok && id == c.ID {
		style = styleEdgeSel
	}
	dashed := c.Condition == "false" || c.Condition == "invalid"
	ed.drawCurve(path, style, dashed, cw, ch)

	if c.Label != "" {
		x, y := ed.cellOf(path.Midpoint())
		ed.drawClipped(x-len([]rune(c.Label))/2, y, c.Label, styleEdgeLabel, cw, ch)
	}
}

// drawPreview draws the connection being dragged out of a port.
func (ed *Editor) drawPreview(cw, ch int) {
	d, ok := ed.canvas.Drawing()
	if !ok || d == nil {
		return
	}
	style := styleDrawing
	if d.Snapped() {
		style = styleSnapped
	}
	ed.drawCurve(canvas.CurvePath(d.Source.Position, d.End()), style, !d.Snapped(), cw, ch)
}

// drawCurve plots a flattened curve cell by cell and finishes it with an
// arrowhead pointing along the last segment.
func (ed *Editor) drawCurve(path canvas.Path, style tcell.Style, dashed bool, cw, ch int) {
	pts := path.Points(edgeSamples)
	n := 0
	for i := 1; i < len(pts); i++ {
		ax, ay := ed.cellOf(pts[i-1])
		bx, by := ed.cellOf(pts[i])
		for _, c := range cellLine(ax, ay, bx, by) {
			n++
			if dashed && n%2 == 0 {
				continue
			}
			ed.setCell(c[0], c[1], '·', style, cw, ch)
		}
	}
	if len(pts) < 2 {
		return
	}
	last, prev := pts[len(pts)-1], pts[len(pts)-2]
	x, y := ed.cellOf(last)
	ed.setCell(x, y, arrowGlyph(last.Sub(prev)), style, cw, ch)
}

// arrowGlyph picks the arrowhead for a direction.
func arrowGlyph(d geom.Point) rune {
	if abs(d.X) > abs(d.Y)*2 {
		if d.X > 0 {
			return '▶'
		}
		return '◀'
	}
	if d.Y < 0 {
		return '▲'
	}
	return '▼'
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// cellLine returns the cells on the line from (x0,y0) to (x1,y1),
// excluding the start cell.
func cellLine(x0, y0, x1, y1 int) [][2]int {
	dx, dy := x1-x0, y1-y0
	sx, sy := 1, 1
	if dx < 0 {
		dx, sx = -dx, -1
	}
	if dy < 0 {
		dy, sy = -dy, -1
	}
	var cells [][2]int
	err := dx - dy
	for x0 != x1 || y0 != y1 {
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
		cells = append(cells, [2]int{x0, y0})
	}
	return cells
}

func (ed *Editor) drawSidebar(w, h int) {
	cw, _ := ed.canvasArea()
	x := cw
	bottom := h - 1
	for y := 0; y < bottom; y++ {
		ed.screen.SetContent(x, y, '│', nil, styleBorder)
	}
	x += 2
	width := w - x - 1

	title := ed.canvas.Flow().Name
	if title == "" {
		title = "Untitled"
	}
	if ed.dirty() {
		title += " *"
	}
	ed.drawString(x, 0, truncate(title, width), styleSidebarH)

	ed.drawString(x, paletteRow-1, "Palette", styleSidebarH)
	for i, k := range flow.Kinds {
		style := styleSidebar
		if i == ed.palette {
			style = styleMenuSel
		}
		line := fmt.Sprintf("%c %-12s", k.Glyph(), canvas.DefaultLabel(k))
		if i == ed.palette && ed.armed {
			line += " +"
		}
		ed.drawString(x, paletteRow+i, truncate(line, width), style)
	}

	y := paletteRow + len(flow.Kinds) + 1
	if id, ok := ed.canvas.SelectedNode(); ok {
		if n, ok := ed.canvas.Flow().FindNode(id); ok {
			ed.drawString(x, y, "Selected", styleSidebarH)
			y++
			ed.drawString(x, y, truncate(n.Label, width), styleSidebar)
			y++
			ed.drawString(x, y, truncate(fmt.Sprintf("%s (%.0f,%.0f)", n.Kind, n.Position.X, n.Position.Y), width), styleKind)
			y += 2
			if suggestions := ed.canvas.Suggest(id); len(suggestions) > 0 {
				ed.drawString(x, y, "Next", styleSidebarH)
				y++
				for i, s := range suggestions {
					if i == 3 || y >= bottom {
						break
					}
					line := fmt.Sprintf("%3.0f%% %s", s.Confidence*100, s.TargetID)
					ed.drawString(x, y, truncate(line, width), styleSidebar)
					y++
				}
				y++
			}
		}
	}

	issues := ed.canvas.Issues()
	if y >= bottom {
		return
	}
	ed.drawString(x, y, fmt.Sprintf("Issues (%d)", len(issues)), styleSidebarH)
	y++
	for _, i := range issues {
		if y >= bottom {
			break
		}
		style := styleWarn
		if i.Severity == integrity.Error {
			style = styleErr
		}
		text := i.Message
		if i.NodeID != "" {
			text = i.NodeID + ": " + text
		}
		ed.drawString(x, y, truncate(text, width), style)
		y++
	}
}

// menuRect returns the cell rectangle of a context menu.
func (ed *Editor) menuRect(m *canvas.Menu) (x, y, w, h int) {
	w = 4
	for _, item := range m.Items {
		if l := len([]rune(item.Label)) + 4; l > w {
			w = l
		}
	}
	h = len(m.Items) + 2
	x, y = screenToCell(m.Pos)
	cw, ch := ed.canvasArea()
	if x+w > cw {
		x = cw - w
	}
	if y+h > ch {
		y = ch - h
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y, w, h
}

func (ed *Editor) drawMenu(m *canvas.Menu) {
	x, y, w, h := ed.menuRect(m)
	ed.drawBox(x, y, w, h, styleMenu)
	for i, item := range m.Items {
		style := styleMenu
		if i == ed.menuSelected {
			style = styleMenuSel
		}
		ed.drawString(x+1, y+1+i, fmt.Sprintf(" %-*s", w-3, item.Label), style)
	}
}

var helpLines = []string{
	"Mouse",
	"  drag node          move (shift: no snap)",
	"  drag port          connect",
	"  drag background    pan",
	"  right click        context menu",
	"  wheel              zoom",
	"  click palette      arm, then click canvas",
	"",
	"Keys",
	"  Tab / Shift+Tab    palette selection",
	"  a                  add palette node at pointer",
	"  e                  edit selected label",
	"  Del                delete selection",
	"  arrows             nudge or pan",
	"  + - 0 f            zoom in, out, reset, fit",
	"  l                  auto arrange",
	"  Ctrl+C/V/D         copy, paste, duplicate",
	"  Ctrl+Z/Y           undo, redo",
	"  Ctrl+S             save",
	"  q / Ctrl+Q         quit",
}

func (ed *Editor) drawHelp(w, h int) {
	boxW := 50
	boxH := len(helpLines) + 2
	x := (w - boxW) / 2
	y := (h - boxH) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	ed.drawBox(x, y, boxW, boxH, styleDefault)
	ed.drawString(x+(boxW-6)/2, y, " Help ", styleSidebarH)
	for i, line := range helpLines {
		ed.drawString(x+2, y+1+i, truncate(line, boxW-4), styleSidebar)
	}
}

// flashInverted reports whether a flashing message is shown inverted
// elapsed milliseconds after it appeared: normal, inverted, normal,
// inverted in 125ms phases, then normal.
func flashInverted(elapsed int64) bool {
	if elapsed < 0 || elapsed >= 500 {
		return false
	}
	phase := elapsed / 125
	return phase == 1 || phase == 3
}

// messageStyle returns the status bar style for a message.
func messageStyle(t MessageType, elapsed int64) tcell.Style {
	style := styleMsgInfo
	switch t {
	case MsgError:
		style = styleMsgError
	case MsgWarning:
		style = styleMsgWarning
	case MsgSuccess:
		style = styleMsgSuccess
	}
	if t != MsgInfo && flashInverted(elapsed) {
		style = style.Reverse(true)
	}
	return style
}

func (ed *Editor) drawStatusBar(w, h int) {
	y := h - 1
	for x := 0; x < w; x++ {
		ed.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	if ed.mode == ModeInput {
		ed.drawString(1, y, ed.inputPrompt, styleInput)
		ed.drawString(1+len(ed.inputPrompt), y, ed.inputBuffer+"_", styleInput)
		return
	}

	fileInfo := "[New]"
	if ed.filename != "" {
		fileInfo = filepath.Base(ed.filename)
	}
	if ed.dirty() {
		fileInfo += " *"
	}
	ed.drawString(1, y, fileInfo, styleStatus)

	state := fmt.Sprintf("%s  %.0f%%", ed.canvas.Mode(), ed.canvas.Viewport().Zoom*100)
	ed.drawString(w/2-len(state)/2, y, state, styleStatus)

	if ed.message != "" {
		elapsed := time.Now().UnixMilli() - ed.messageFlashStart.Load()
		msg := truncate(ed.message, w/2-len(state)/2-2)
		ed.drawString(w-len([]rune(msg))-2, y, msg, messageStyle(ed.messageType, elapsed))
	}
}

func (ed *Editor) drawBox(x, y, w, h int, style tcell.Style) {
	// Corners
	ed.screen.SetContent(x, y, '┌', nil, styleBorder)
	ed.screen.SetContent(x+w-1, y, '┐', nil, styleBorder)
	ed.screen.SetContent(x, y+h-1, '└', nil, styleBorder)
	ed.screen.SetContent(x+w-1, y+h-1, '┘', nil, styleBorder)

	// Horizontal borders
	for i := x + 1; i < x+w-1; i++ {
		ed.screen.SetContent(i, y, '─', nil, styleBorder)
		ed.screen.SetContent(i, y+h-1, '─', nil, styleBorder)
	}

	// Vertical borders
	for i := y + 1; i < y+h-1; i++ {
		ed.screen.SetContent(x, i, '│', nil, styleBorder)
		ed.screen.SetContent(x+w-1, i, '│', nil, styleBorder)
	}

	// Fill
	for row := y + 1; row < y+h-1; row++ {
		for col := x + 1; col < x+w-1; col++ {
			ed.screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

func (ed *Editor) drawString(x, y int, s string, style tcell.Style) {
	i := 0
	for _, r := range s {
		ed.screen.SetContent(x+i, y, r, nil, style)
		i++
	}
}

func (ed *Editor) drawClipped(x, y int, s string, style tcell.Style, cw, ch int) {
	i := 0
	for _, r := range s {
		ed.setCell(x+i, y, r, style, cw, ch)
		i++
	}
}

// truncate shortens s to at most maxLen runes, marking the cut with an
// ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 {
		return ""
	}
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-1]) + "…"
}
