package flow

import "github.com/ha1tch/flowdesigner/pkg/geom"

// Direction tells whether a connection point receives or emits edges.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// ConnectionPoint is an attachment location on a node. Points are always
// derived from the current nodes and never stored.
type ConnectionPoint struct {
	NodeID    string
	Direction Direction
	Index     int
	Name      string // named output, e.g. "Yes"; empty for single ports
	Condition string // edge condition tag for named outputs
	DataType  DataType
	Position  geom.Point // canvas space
}

// Same reports whether p and q denote the same port.
func (p ConnectionPoint) Same(q ConnectionPoint) bool {
	return p.NodeID == q.NodeID && p.Direction == q.Direction && p.Index == q.Index
}

// InputPoint returns the node's input point; start nodes have none.
func InputPoint(n Node) (ConnectionPoint, bool) {
	if !n.Kind.HasInput() {
		return ConnectionPoint{}, false
	}
	return ConnectionPoint{
		NodeID:    n.ID,
		Direction: Input,
		DataType:  n.Kind.InputType(),
		Position:  geom.Pt(n.Position.X+NodeWidth/2, n.Position.Y),
	}, true
}

// OutputPoints returns the node's output points, spread evenly along its
// bottom edge. End nodes have none.
func OutputPoints(n Node) []ConnectionPoint {
	ports := n.Kind.Outputs()
	if len(ports) == 0 {
		return nil
	}
	points := make([]ConnectionPoint, len(ports))
	step := float64(NodeWidth) / float64(len(ports)+1)
	for i, port := range ports {
		points[i] = ConnectionPoint{
			NodeID:    n.ID,
			Direction: Output,
			Index:     i,
			Name:      port.Name,
			Condition: port.Condition,
			DataType:  n.Kind.OutputType(),
			Position:  geom.Pt(n.Position.X+step*float64(i+1), n.Position.Y+NodeHeight),
		}
	}
	return points
}

// OutputPoint returns the output point with the given index.
func OutputPoint(n Node, index int) (ConnectionPoint, bool) {
	points := OutputPoints(n)
	if index < 0 || index >= len(points) {
		return ConnectionPoint{}, false
	}
	return points[index], true
}

// PointsFor returns every connection point of a node, input first.
func PointsFor(n Node) []ConnectionPoint {
	var points []ConnectionPoint
	if in, ok := InputPoint(n); ok {
		points = append(points, in)
	}
	return append(points, OutputPoints(n)...)
}

// Points derives the connection points of every node in the flow.
func (f *ServiceFlow) Points() []ConnectionPoint {
	var points []ConnectionPoint
	for _, n := range f.Nodes {
		points = append(points, PointsFor(n)...)
	}
	return points
}

// SourcePoint returns the output point a connection leaves from. Named
// outputs are matched by the connection's condition tag; otherwise the
// first output is used.
func (f *ServiceFlow) SourcePoint(c Connection) (ConnectionPoint, bool) {
	n, ok := f.FindNode(c.SourceID)
	if !ok {
		return ConnectionPoint{}, false
	}
	points := OutputPoints(*n)
	if len(points) == 0 {
		return ConnectionPoint{}, false
	}
	if c.Condition != "" {
		for _, p := range points {
			if p.Condition == c.Condition {
				return p, true
			}
		}
	}
	return points[0], true
}

// TargetPoint returns the input point a connection arrives at.
func (f *ServiceFlow) TargetPoint(c Connection) (ConnectionPoint, bool) {
	n, ok := f.FindNode(c.TargetID)
	if !ok {
		return ConnectionPoint{}, false
	}
	return InputPoint(*n)
}
