package canvas

import (
	"fmt"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
	"github.com/ha1tch/flowdesigner/pkg/rules"
)

// Draw is the transient state of a connection being drawn.
type Draw struct {
	Source  flow.ConnectionPoint
	Pointer geom.Point // canvas space

	// Target is the nearest input within the snap radius, if any, and
	// Verdict the rules engine's answer for it.
	Target    *flow.ConnectionPoint
	Verdict   rules.Result
	validated map[string]rules.Result
}

// End returns where the preview line ends: the snapped target when it
// is valid, otherwise the pointer.
func (d *Draw) End() geom.Point {
	if d.Snapped() {
		return d.Target.Position
	}
	return d.Pointer
}

// Snapped reports whether the preview is attached to a valid input.
func (d *Draw) Snapped() bool {
	return d.Target != nil && d.Verdict.Valid
}

// ValidTargets returns the per-node verdicts computed when the draw began.
func (d *Draw) ValidTargets() map[string]rules.Result {
	return d.validated
}

func (c *Canvas) beginDraw(src flow.ConnectionPoint, pointer geom.Point) {
	c.mode = ModeDrawingConnection
	c.draw = &Draw{
		Source:    src,
		Pointer:   pointer,
		validated: c.rules.ValidTargets(c.flow, src),
	}
	c.trackDraw(pointer)
}

func (c *Canvas) trackDraw(pointer geom.Point) {
	d := c.draw
	d.Pointer = pointer
	d.Target = nil
	d.Verdict = rules.Result{}

	in, ok := c.nearestInput(pointer, c.opts.SnapRadius, d.Source.NodeID)
	if !ok {
		return
	}
	d.Target = &in
	if v, ok := d.validated[in.NodeID]; ok {
		d.Verdict = v
	} else {
		d.Verdict = rules.Result{Reason: "Not a valid target"}
	}
}

// finishDraw commits the connection when the pointer was released over
// a valid input. A release elsewhere is discarded silently.
func (c *Canvas) finishDraw(pointer geom.Point) {
	c.trackDraw(pointer)
	d := c.draw
	c.draw = nil
	c.mode = ModeIdle

	if d.Target == nil {
		return
	}
	if !d.Verdict.Valid {
		c.feedback(d.Verdict.Reason, false)
		return
	}
	conn, err := c.connect(d.Source, *d.Target)
	if err != nil {
		c.feedback(err.Error(), false)
		return
	}
	c.emit(Event{Type: EventConnectionCreated, Connection: &conn})
	c.feedback(d.Verdict.Reason, true)
}

// Connect validates and creates a connection between two points.
func (c *Canvas) Connect(source, target flow.ConnectionPoint) (flow.Connection, error) {
	if v := c.rules.IsValidConnection(c.flow, source, target); !v.Valid {
		c.feedback(v.Reason, false)
		return flow.Connection{}, fmt.Errorf("%w: %s", ErrRejected, v.Reason)
	}
	conn, err := c.connect(source, target)
	if err != nil {
		return conn, err
	}
	c.emit(Event{Type: EventConnectionCreated, Connection: &conn})
	return conn, nil
}

func (c *Canvas) connect(source, target flow.ConnectionPoint) (flow.Connection, error) {
	conn := flow.Connection{
		ID:        flow.NewID("conn"),
		SourceID:  source.NodeID,
		TargetID:  target.NodeID,
		Label:     c.edgeLabel(source, target),
		Condition: source.Condition,
	}
	err := c.apply(func(f *flow.ServiceFlow) error {
		return f.AddConnection(conn)
	})
	if err == nil {
		c.log.Debug("connection created", "id", conn.ID, "source", conn.SourceID, "target", conn.TargetID)
	}
	return conn, err
}

// edgeLabel names an edge after the source's named output, or after its
// endpoints for single-output nodes.
func (c *Canvas) edgeLabel(source, target flow.ConnectionPoint) string {
	if source.Name != "" {
		return source.Name
	}
	src, _ := c.flow.FindNode(source.NodeID)
	dst, _ := c.flow.FindNode(target.NodeID)
	if src == nil || dst == nil {
		return ""
	}
	return src.Label + " → " + dst.Label
}
