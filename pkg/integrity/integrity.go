// Package integrity reports structural problems in a flow. Issues are
// informational; nothing here blocks editing.
package integrity

import (
	"fmt"
	"strings"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// Severity ranks an issue.
type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Issue codes.
const (
	CodeNoStart        = "no-start"
	CodeMultipleStarts = "multiple-starts"
	CodeNoEnd          = "no-end"
	CodeOrphan         = "orphan"
	CodeCycle          = "cycle"
	CodeStartDangling  = "start-no-outgoing"
	CodeEndUnreached   = "end-no-incoming"
	CodeEmptyLabel     = "empty-label"
)

// Issue is one finding. NodeID is empty for flow-wide issues.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	NodeID   string   `json:"nodeId,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.NodeID, i.Message)
}

// HasErrors reports whether any issue is error-level.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == Error {
			return true
		}
	}
	return false
}

// Check runs the flow-wide checks: start and end counts, orphaned nodes
// and cycles reachable from a start node.
func Check(f *flow.ServiceFlow) []Issue {
	var issues []Issue

	starts := f.OfKind(flow.KindStart)
	switch {
	case len(starts) == 0:
		issues = append(issues, Issue{Severity: Error, Code: CodeNoStart,
			Message: "Flow has no start node"})
	case len(starts) > 1:
		issues = append(issues, Issue{Severity: Warning, Code: CodeMultipleStarts,
			Message: fmt.Sprintf("Flow has %d start nodes", len(starts))})
	}

	if len(f.OfKind(flow.KindEnd)) == 0 {
		issues = append(issues, Issue{Severity: Warning, Code: CodeNoEnd,
			Message: "Flow has no end node"})
	}

	touched := make(map[string]bool, len(f.Nodes))
	for _, c := range f.Connections {
		touched[c.SourceID] = true
		touched[c.TargetID] = true
	}
	for _, n := range f.Nodes {
		if n.Kind == flow.KindStart || n.Kind == flow.KindEnd || touched[n.ID] {
			continue
		}
		issues = append(issues, Issue{Severity: Warning, Code: CodeOrphan, NodeID: n.ID,
			Message: fmt.Sprintf("%q is not connected", n.Label)})
	}

	if id, ok := findCycle(f, starts); ok {
		issues = append(issues, Issue{Severity: Warning, Code: CodeCycle, NodeID: id,
			Message: "Flow contains a cycle"})
	}

	return issues
}

// findCycle walks depth-first from each start node and returns the node
// at which the first back edge lands.
func findCycle(f *flow.ServiceFlow, starts []flow.Node) (string, bool) {
	adj := make(map[string][]string, len(f.Nodes))
	for _, c := range f.Connections {
		adj[c.SourceID] = append(adj[c.SourceID], c.TargetID)
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(string) (string, bool)
	dfs = func(node string) (string, bool) {
		visited[node] = true
		onStack[node] = true
		for _, next := range adj[node] {
			if onStack[next] {
				return next, true // back edge
			}
			if !visited[next] {
				if id, ok := dfs(next); ok {
					return id, true
				}
			}
		}
		onStack[node] = false
		return "", false
	}

	for _, s := range starts {
		if visited[s.ID] {
			continue
		}
		if id, ok := dfs(s.ID); ok {
			return id, true
		}
	}
	return "", false
}

// NodeIssues returns the badge-level issues for a single node.
func NodeIssues(f *flow.ServiceFlow, n flow.Node) []Issue {
	var issues []Issue
	if strings.TrimSpace(n.Label) == "" {
		issues = append(issues, Issue{Severity: Error, Code: CodeEmptyLabel, NodeID: n.ID,
			Message: "Label is empty"})
	}
	switch n.Kind {
	case flow.KindStart:
		if len(f.EdgesFrom(n.ID)) == 0 {
			issues = append(issues, Issue{Severity: Warning, Code: CodeStartDangling, NodeID: n.ID,
				Message: "Start node has no outgoing connection"})
		}
	case flow.KindEnd:
		if len(f.EdgesTo(n.ID)) == 0 {
			issues = append(issues, Issue{Severity: Warning, Code: CodeEndUnreached, NodeID: n.ID,
				Message: "End node has no incoming connection"})
		}
	}
	return issues
}

// All returns the flow-wide issues followed by every node's issues.
func All(f *flow.ServiceFlow) []Issue {
	issues := Check(f)
	for _, n := range f.Nodes {
		issues = append(issues, NodeIssues(f, n)...)
	}
	return issues
}

// Worst returns the most severe level among issues for one node, or the
// empty severity when the node is clean.
func Worst(issues []Issue, nodeID string) Severity {
	var worst Severity
	for _, i := range issues {
		if i.NodeID != nodeID {
			continue
		}
		if i.Severity == Error {
			return Error
		}
		worst = Warning
	}
	return worst
}
