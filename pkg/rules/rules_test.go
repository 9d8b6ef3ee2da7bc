package rules

import (
	"strings"
	"testing"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// pairFlow builds a flow holding one node of each given kind and returns
// the source output and target input points, constructing the points by
// hand when the kind has no such port.
func pairFlow(t *testing.T, src, dst flow.Kind) (*flow.ServiceFlow, flow.ConnectionPoint, flow.ConnectionPoint) {
	t.Helper()
	f := &flow.ServiceFlow{}
	a := flow.Node{ID: "src", Kind: src, Label: "Src", Position: geom.Pt(100, 100)}
	b := flow.Node{ID: "dst", Kind: dst, Label: "Dst", Position: geom.Pt(100, 400)}
	if err := f.AddNode(a); err != nil {
		t.Fatal(err)
	}
	if err := f.AddNode(b); err != nil {
		t.Fatal(err)
	}

	out, ok := flow.OutputPoint(a, 0)
	if !ok {
		out = flow.ConnectionPoint{NodeID: a.ID, Direction: flow.Output}
	}
	in, ok := flow.InputPoint(b)
	if !ok {
		in = flow.ConnectionPoint{NodeID: b.ID, Direction: flow.Input}
	}
	return f, out, in
}

func TestAllowedPairsAreValid(t *testing.T) {
	e := NewEngine(nil)
	for _, r := range e.Table().Rules() {
		if !r.Allowed {
			continue
		}
		t.Run(string(r.Source)+"->"+string(r.Target), func(t *testing.T) {
			f, out, in := pairFlow(t, r.Source, r.Target)
			got := e.IsValidConnection(f, out, in)
			if !got.Valid {
				t.Errorf("expected valid, got reason %q", got.Reason)
			}
			if got.Reason != r.Description {
				t.Errorf("reason = %q, want rule description %q", got.Reason, r.Description)
			}
		})
	}
}

func TestOtherPairsAreRejected(t *testing.T) {
	e := NewEngine(nil)
	for _, src := range flow.Kinds {
		for _, dst := range flow.Kinds {
			if r, ok := e.Table().Lookup(src, dst); ok && r.Allowed {
				continue
			}
			t.Run(string(src)+"->"+string(dst), func(t *testing.T) {
				f, out, in := pairFlow(t, src, dst)
				got := e.IsValidConnection(f, out, in)
				if got.Valid {
					t.Error("expected rejection")
				}
				if got.Reason == "" {
					t.Error("rejection must carry a reason")
				}
			})
		}
	}
}

func TestSelfConnectionAlwaysRejected(t *testing.T) {
	e := NewEngine(nil)
	for _, k := range flow.Kinds {
		n := flow.Node{ID: "n", Kind: k, Position: geom.Pt(0, 0)}
		f := &flow.ServiceFlow{Nodes: []flow.Node{n}}
		out := flow.ConnectionPoint{NodeID: "n", Direction: flow.Output}
		in := flow.ConnectionPoint{NodeID: "n", Direction: flow.Input}
		got := e.IsValidConnection(f, out, in)
		if got.Valid {
			t.Errorf("%s: self connection accepted", k)
		}
		if !strings.Contains(got.Reason, "itself") {
			t.Errorf("%s: reason %q", k, got.Reason)
		}
	}
}

func TestDirectionMismatch(t *testing.T) {
	e := NewEngine(nil)
	f, out, in := pairFlow(t, flow.KindPage, flow.KindPage)

	if got := e.IsValidConnection(f, in, out); got.Valid {
		t.Error("input used as source must be rejected")
	}
	out2 := out
	out2.NodeID = "dst"
	if got := e.IsValidConnection(f, out, out2); got.Valid {
		t.Error("output used as target must be rejected")
	}
}

func TestDuplicateRejected(t *testing.T) {
	e := NewEngine(nil)
	f, out, in := pairFlow(t, flow.KindPage, flow.KindEnd)

	if got := e.IsValidConnection(f, out, in); !got.Valid {
		t.Fatalf("first attempt: %s", got.Reason)
	}
	if err := f.AddConnection(flow.Connection{ID: "c1", SourceID: "src", TargetID: "dst"}); err != nil {
		t.Fatal(err)
	}
	got := e.IsValidConnection(f, out, in)
	if got.Valid {
		t.Fatal("second attempt should be rejected")
	}
	if !strings.Contains(got.Reason, "already connected") {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestMaxConnections(t *testing.T) {
	e := NewEngine(nil)
	f := flow.New("cap")
	_ = f.AddNode(flow.Node{ID: "p1", Kind: flow.KindPage, Label: "P1", Position: geom.Pt(300, 100)})
	_ = f.AddNode(flow.Node{ID: "p2", Kind: flow.KindPage, Label: "P2", Position: geom.Pt(300, 300)})
	_ = f.AddConnection(flow.Connection{ID: "c1", SourceID: "start-1", TargetID: "p1"})

	start, _ := f.FindNode("start-1")
	p2, _ := f.FindNode("p2")
	out, _ := flow.OutputPoint(*start, 0)
	in, _ := flow.InputPoint(*p2)

	got := e.IsValidConnection(f, out, in)
	if got.Valid {
		t.Fatal("start allows one outgoing connection")
	}
	if !strings.Contains(got.Reason, "at most 1") {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestDataTypeMismatch(t *testing.T) {
	e := NewEngine(nil)
	f, out, in := pairFlow(t, flow.KindPage, flow.KindPage)
	out.DataType = flow.DataValidation
	in.DataType = flow.DataNumber

	got := e.IsValidConnection(f, out, in)
	if got.Valid {
		t.Fatal("validation -> number should be rejected")
	}
	if !strings.Contains(got.Reason, "Data type") {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestDataTypesCompatible(t *testing.T) {
	tests := []struct {
		src, dst flow.DataType
		want     bool
	}{
		{flow.DataFlow, flow.DataFlow, true},
		{flow.DataFlow, flow.DataNumber, false},
		{flow.DataGeneric, flow.DataNumber, true},
		{flow.DataValidation, flow.DataGeneric, true},
		{flow.DataBoolean, flow.DataValidation, false},
		{"", flow.DataNumber, true},
	}
	for _, tt := range tests {
		if got := DataTypesCompatible(tt.src, tt.dst); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestStartPageEndScenario(t *testing.T) {
	e := NewEngine(nil)
	f := &flow.ServiceFlow{}
	_ = f.AddNode(flow.Node{ID: "start", Kind: flow.KindStart, Label: "Start", Position: geom.Pt(100, 100)})
	_ = f.AddNode(flow.Node{ID: "A", Kind: flow.KindPage, Label: "A", Position: geom.Pt(300, 200)})
	_ = f.AddNode(flow.Node{ID: "end", Kind: flow.KindEnd, Label: "End", Position: geom.Pt(600, 200)})

	point := func(id string, dir flow.Direction) flow.ConnectionPoint {
		n, _ := f.FindNode(id)
		if dir == flow.Input {
			p, _ := flow.InputPoint(*n)
			return p
		}
		p, _ := flow.OutputPoint(*n, 0)
		return p
	}

	if got := e.IsValidConnection(f, point("start", flow.Output), point("end", flow.Input)); got.Valid {
		t.Error("start -> end must be rejected")
	} else if !strings.Contains(got.Reason, "Start cannot connect directly to End") {
		t.Errorf("reason = %q", got.Reason)
	}

	if got := e.IsValidConnection(f, point("start", flow.Output), point("A", flow.Input)); !got.Valid {
		t.Fatalf("start -> A: %s", got.Reason)
	}
	_ = f.AddConnection(flow.Connection{ID: "c1", SourceID: "start", TargetID: "A"})

	if got := e.IsValidConnection(f, point("A", flow.Output), point("end", flow.Input)); !got.Valid {
		t.Fatalf("A -> end: %s", got.Reason)
	}
}

func TestValidTargets(t *testing.T) {
	e := NewEngine(nil)
	f := flow.New("vt")
	_ = f.AddNode(flow.Node{ID: "p", Kind: flow.KindPage, Label: "P", Position: geom.Pt(300, 100)})
	_ = f.AddNode(flow.Node{ID: "e", Kind: flow.KindEnd, Label: "E", Position: geom.Pt(300, 300)})

	start, _ := f.FindNode("start-1")
	out, _ := flow.OutputPoint(*start, 0)
	targets := e.ValidTargets(f, out)

	if len(targets) != 2 {
		t.Fatalf("Expected 2 evaluated targets, got %d", len(targets))
	}
	if !targets["p"].Valid {
		t.Error("page should be a valid target")
	}
	if targets["e"].Valid {
		t.Error("end should not be a valid target for start")
	}
}
