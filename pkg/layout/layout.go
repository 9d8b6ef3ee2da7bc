// Package layout places flow nodes: grid snapping, canvas clamping and a
// breadth-first auto-arrange that lays nodes out in levels from the start
// nodes.
package layout

import (
	"math"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// DefaultGrid is the snapping increment in canvas units.
const DefaultGrid = 20

// Grid used when a flow is built from a backend page record.
const (
	PageStartX      = 100
	PageStartY      = 100
	CategoryX       = 300
	CategoryY       = 200
	CategorySpacing = 200
	FieldSpacing    = 80
)

// Snap rounds v to the nearest multiple of grid. A non-positive grid
// leaves v unchanged.
func Snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// SnapPoint snaps both coordinates of p.
func SnapPoint(p geom.Point, grid float64) geom.Point {
	return geom.Pt(Snap(p.X, grid), Snap(p.Y, grid))
}

// Clamp keeps a node position inside the canvas extent.
func Clamp(p geom.Point) geom.Point {
	return geom.Pt(
		math.Max(0, math.Min(flow.CanvasWidth-flow.NodeWidth, p.X)),
		math.Max(0, math.Min(flow.CanvasHeight-flow.NodeHeight, p.Y)),
	)
}

// Place snaps p to the grid and clamps the result to the canvas.
func Place(p geom.Point, grid float64) geom.Point {
	return Clamp(SnapPoint(p, grid))
}

// Options controls auto-arrange spacing.
type Options struct {
	BaseX        float64
	LevelSpacing float64
	NodeSpacing  float64
	CenterY      float64
}

// DefaultOptions spreads levels 250 units apart around the canvas's
// vertical midpoint.
func DefaultOptions() Options {
	return Options{
		BaseX:        100,
		LevelSpacing: 250,
		NodeSpacing:  120,
		CenterY:      flow.CanvasHeight / 2,
	}
}

// Levels assigns every node reachable from a start node its breadth-first
// depth. Start nodes are level 0. The result lists node ids per level in
// discovery order; unreachable nodes are absent.
func Levels(f *flow.ServiceFlow) [][]string {
	level := make(map[string]int)
	var queue []string
	for _, n := range f.OfKind(flow.KindStart) {
		level[n.ID] = 0
		queue = append(queue, n.ID)
	}

	var layers [][]string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		l := level[current]
		for len(layers) <= l {
			layers = append(layers, nil)
		}
		layers[l] = append(layers[l], current)

		for _, c := range f.EdgesFrom(current) {
			if _, visited := level[c.TargetID]; visited {
				continue
			}
			if _, ok := f.FindNode(c.TargetID); !ok {
				continue
			}
			level[c.TargetID] = l + 1
			queue = append(queue, c.TargetID)
		}
	}
	return layers
}

// Arrange computes level-based positions for every reachable node without
// touching the flow. Positions are clamped to the canvas.
func Arrange(f *flow.ServiceFlow, opts Options) map[string]geom.Point {
	positions := make(map[string]geom.Point)
	for l, ids := range Levels(f) {
		count := float64(len(ids))
		x := float64(l)*opts.LevelSpacing + opts.BaseX
		for i, id := range ids {
			y := opts.CenterY + float64(i)*opts.NodeSpacing - (count-1)*opts.NodeSpacing/2
			positions[id] = Clamp(geom.Pt(x, y))
		}
	}
	return positions
}

// AutoArrange moves every reachable node to its level position and
// returns how many nodes moved. Unreached nodes keep their position.
func AutoArrange(f *flow.ServiceFlow, opts Options) (int, error) {
	positions := Arrange(f, opts)
	moved := 0
	for _, n := range f.Nodes {
		p, ok := positions[n.ID]
		if !ok || p == n.Position {
			continue
		}
		if err := f.MoveNode(n.ID, p); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
