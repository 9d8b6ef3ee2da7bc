package canvas

import (
	"math"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// edgeSamples is the number of segments used to flatten an edge curve.
const edgeSamples = 24

// Path is a cubic Bézier from an output point to an input point.
type Path struct {
	From, C1, C2, To geom.Point
}

// Points flattens the path into n segments.
func (p Path) Points(n int) []geom.Point {
	return geom.Flatten(p.From, p.C1, p.C2, p.To, n)
}

// Midpoint returns the point halfway along the curve parameter.
func (p Path) Midpoint() geom.Point {
	return geom.CubicBezier(p.From, p.C1, p.C2, p.To, 0.5)
}

// CurvePath returns the edge curve between two canvas points: vertical
// tangents meeting at the midpoint height.
func CurvePath(from, to geom.Point) Path {
	midY := from.Y + (to.Y-from.Y)/2
	return Path{
		From: from,
		C1:   geom.Pt(from.X, midY),
		C2:   geom.Pt(to.X, midY),
		To:   to,
	}
}

// EdgePath returns the canvas-space curve of a connection, leaving the
// source's matching output port and entering the target's input.
func EdgePath(f *flow.ServiceFlow, c flow.Connection) (Path, bool) {
	src, ok := f.SourcePoint(c)
	if !ok {
		return Path{}, false
	}
	dst, ok := f.TargetPoint(c)
	if !ok {
		return Path{}, false
	}
	return CurvePath(src.Position, dst.Position), true
}

// hitKind classifies what lies under the pointer.
type hitKind int

const (
	hitNone hitKind = iota
	hitPoint
	hitNode
	hitEdge
)

type hit struct {
	kind  hitKind
	node  string
	conn  string
	point flow.ConnectionPoint
}

// hitTest finds the topmost item at canvas point p: output glyphs first,
// then node bodies (last drawn on top), then edges.
func (c *Canvas) hitTest(p geom.Point) hit {
	nodes := c.flow.Nodes
	for i := len(nodes) - 1; i >= 0; i-- {
		for _, pt := range flow.OutputPoints(nodes[i]) {
			if pt.Position.Dist(p) <= c.opts.PointRadius {
				return hit{kind: hitPoint, node: pt.NodeID, point: pt}
			}
		}
	}

	if id, ok := c.NodeAt(p); ok {
		return hit{kind: hitNode, node: id}
	}

	if id, ok := c.ConnectionAt(p); ok {
		return hit{kind: hitEdge, conn: id}
	}
	return hit{}
}

// NodeAt returns the topmost node whose footprint contains canvas point p.
func (c *Canvas) NodeAt(p geom.Point) (string, bool) {
	nodes := c.flow.Nodes
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Rect().Contains(p) {
			return nodes[i].ID, true
		}
	}
	return "", false
}

// ConnectionAt returns the connection whose curve passes nearest to p
// within the edge tolerance.
func (c *Canvas) ConnectionAt(p geom.Point) (string, bool) {
	best, bestDist := "", math.Inf(1)
	for _, conn := range c.flow.Connections {
		path, ok := EdgePath(c.flow, conn)
		if !ok {
			continue
		}
		d := geom.PolylineDist(p, path.Points(edgeSamples))
		if d <= c.opts.EdgeTolerance && d < bestDist {
			best, bestDist = conn.ID, d
		}
	}
	return best, best != ""
}

// nearestInput returns the input point closest to p within radius,
// excluding the given node.
func (c *Canvas) nearestInput(p geom.Point, radius float64, exclude string) (flow.ConnectionPoint, bool) {
	var best flow.ConnectionPoint
	bestDist := math.Inf(1)
	for _, n := range c.flow.Nodes {
		if n.ID == exclude {
			continue
		}
		in, ok := flow.InputPoint(n)
		if !ok {
			continue
		}
		if d := in.Position.Dist(p); d <= radius && d < bestDist {
			best, bestDist = in, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
