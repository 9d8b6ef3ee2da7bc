// Package viewport maps between screen space (pointer coordinates) and
// canvas space (stored node positions) under a zoom and pan.
//
// The transform is
//
//	canvas = (screen - origin) / zoom - pan
//	screen = (canvas + pan) * zoom + origin
//
// Every component that converts pointer positions goes through it.
package viewport

import (
	"math"

	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// Zoom limits.
const (
	MinZoom     = 0.25
	MaxZoom     = 3.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// Viewport holds the zoom and pan applied to the canvas. Origin is the
// screen position of the canvas widget's top-left corner.
type Viewport struct {
	Zoom   float64
	Pan    geom.Point
	Origin geom.Point
}

// New returns a viewport at zoom 1 with no pan.
func New() *Viewport {
	return &Viewport{Zoom: DefaultZoom}
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ScreenToCanvas converts a screen point to canvas space.
func (v *Viewport) ScreenToCanvas(p geom.Point) geom.Point {
	return p.Sub(v.Origin).Scale(1 / v.Zoom).Sub(v.Pan)
}

// CanvasToScreen converts a canvas point to screen space.
func (v *Viewport) CanvasToScreen(p geom.Point) geom.Point {
	return p.Add(v.Pan).Scale(v.Zoom).Add(v.Origin)
}

// ScreenDelta converts a screen-space displacement to canvas units.
func (v *Viewport) ScreenDelta(d geom.Point) geom.Point {
	return d.Scale(1 / v.Zoom)
}

// SetZoom sets the zoom level, clamped, and reports whether it changed.
func (v *Viewport) SetZoom(z float64) bool {
	z = ClampZoom(z)
	if z == v.Zoom {
		return false
	}
	v.Zoom = z
	return true
}

// ZoomIn raises the zoom by one step.
func (v *Viewport) ZoomIn() bool {
	return v.SetZoom(v.Zoom + ZoomStep)
}

// ZoomOut lowers the zoom by one step.
func (v *Viewport) ZoomOut() bool {
	return v.SetZoom(v.Zoom - ZoomStep)
}

// ZoomAtWheel changes the zoom by delta while keeping the canvas point
// under the screen point p fixed.
func (v *Viewport) ZoomAtWheel(p geom.Point, delta float64) bool {
	anchor := v.ScreenToCanvas(p)
	if !v.SetZoom(v.Zoom + delta) {
		return false
	}
	// Solve (anchor + pan) * zoom + origin = p for pan.
	v.Pan = p.Sub(v.Origin).Scale(1 / v.Zoom).Sub(anchor)
	return true
}

// PanBy shifts the view by a screen-space displacement.
func (v *Viewport) PanBy(d geom.Point) {
	v.Pan = v.Pan.Add(v.ScreenDelta(d))
}

// FitToContent picks the largest zoom at which bounds fit in a viewport
// of the given screen size, clamped to the zoom limits, and centres the
// content. Empty bounds or a degenerate viewport leave the view alone.
func (v *Viewport) FitToContent(bounds geom.Rect, size geom.Point) bool {
	if bounds.Empty() || size.X <= 0 || size.Y <= 0 {
		return false
	}
	z := math.Min(size.X/bounds.Width(), size.Y/bounds.Height())
	v.Zoom = ClampZoom(z)

	c := bounds.Center()
	v.Pan = geom.Pt(size.X/(2*v.Zoom)-c.X, size.Y/(2*v.Zoom)-c.Y)
	return true
}

// Reset restores zoom 1 and clears the pan.
func (v *Viewport) Reset() {
	v.Zoom = DefaultZoom
	v.Pan = geom.Point{}
}

// Visible returns the canvas-space rectangle shown in a viewport of the
// given screen size.
func (v *Viewport) Visible(size geom.Point) geom.Rect {
	return geom.Rect{
		Min: v.ScreenToCanvas(v.Origin),
		Max: v.ScreenToCanvas(v.Origin.Add(size)),
	}
}
