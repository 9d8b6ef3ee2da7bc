// Package rules decides which connections between flow nodes are
// allowed and ranks likely next connections for a node.
package rules

import (
	"fmt"
	"slices"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// Rule describes whether nodes of one kind may feed nodes of another.
type Rule struct {
	Source         flow.Kind
	Target         flow.Kind
	Allowed        bool
	Description    string // shown on success, or the rejection reason
	MaxConnections int    // cap on outgoing edges from the source; 0 = none
}

type pair struct {
	source, target flow.Kind
}

// Table is a compatibility table keyed by (source kind, target kind).
type Table struct {
	rules map[pair]Rule
}

// NewTable builds a table from a list of rules. Later entries replace
// earlier ones for the same pair.
func NewTable(rules []Rule) *Table {
	t := &Table{rules: make(map[pair]Rule, len(rules))}
	for _, r := range rules {
		t.rules[pair{r.Source, r.Target}] = r
	}
	return t
}

// Lookup returns the rule for a kind pair.
func (t *Table) Lookup(source, target flow.Kind) (Rule, bool) {
	r, ok := t.rules[pair{source, target}]
	return r, ok
}

// Rules returns every rule sorted by source then target kind.
func (t *Table) Rules() []Rule {
	result := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		result = append(result, r)
	}
	slices.SortFunc(result, func(a, b Rule) int {
		if a.Source != b.Source {
			return kindOrder(a.Source) - kindOrder(b.Source)
		}
		return kindOrder(a.Target) - kindOrder(b.Target)
	})
	return result
}

func kindOrder(k flow.Kind) int {
	return slices.Index(flow.Kinds, k)
}

func allow(src, dst flow.Kind, desc string, max int) Rule {
	return Rule{Source: src, Target: dst, Allowed: true, Description: desc, MaxConnections: max}
}

// DefaultRules is the built-in compatibility table.
var DefaultRules = []Rule{
	allow(flow.KindStart, flow.KindPage, "Flow begins with a page", 1),
	allow(flow.KindStart, flow.KindDecision, "Flow begins with a decision", 1),
	allow(flow.KindStart, flow.KindCondition, "Flow begins with a condition check", 1),
	allow(flow.KindStart, flow.KindAPICall, "Flow begins with an API call", 1),
	{
		Source: flow.KindStart, Target: flow.KindEnd, Allowed: false,
		Description: "Start cannot connect directly to End; the flow must pass through at least one intermediate node",
	},

	allow(flow.KindPage, flow.KindPage, "Continue to the next page", 0),
	allow(flow.KindPage, flow.KindCondition, "Evaluate a condition after the page", 0),
	allow(flow.KindPage, flow.KindDecision, "Branch on a decision after the page", 0),
	allow(flow.KindPage, flow.KindEnd, "Finish the flow after the page", 0),
	allow(flow.KindPage, flow.KindValidation, "Validate the page input", 0),
	allow(flow.KindPage, flow.KindField, "Page contains a field", 0),
	allow(flow.KindPage, flow.KindAPICall, "Submit page data to an API", 0),
	allow(flow.KindPage, flow.KindDatabase, "Persist page data", 0),

	allow(flow.KindDecision, flow.KindPage, "Decision branch leads to a page", 2),
	allow(flow.KindDecision, flow.KindCondition, "Decision branch leads to a condition", 2),
	allow(flow.KindDecision, flow.KindEnd, "Decision branch ends the flow", 2),
	allow(flow.KindDecision, flow.KindDecision, "Decision branch leads to another decision", 2),

	allow(flow.KindCondition, flow.KindPage, "Condition result shows a page", 2),
	allow(flow.KindCondition, flow.KindField, "Condition result controls a field", 2),
	allow(flow.KindCondition, flow.KindDecision, "Condition result feeds a decision", 2),

	allow(flow.KindField, flow.KindValidation, "Field value is validated", 0),
	allow(flow.KindField, flow.KindCalculation, "Field value feeds a calculation", 0),
	allow(flow.KindField, flow.KindCondition, "Field value is tested by a condition", 0),

	allow(flow.KindValidation, flow.KindPage, "Validation outcome leads to a page", 2),
	allow(flow.KindValidation, flow.KindEnd, "Validation outcome ends the flow", 2),

	allow(flow.KindCalculation, flow.KindField, "Calculation result fills a field", 0),
	allow(flow.KindCalculation, flow.KindPage, "Calculation result is shown on a page", 0),
	allow(flow.KindCalculation, flow.KindDatabase, "Calculation result is stored", 0),

	allow(flow.KindAPICall, flow.KindPage, "API response leads to a page", 0),
	allow(flow.KindAPICall, flow.KindEnd, "API call ends the flow", 0),
	allow(flow.KindAPICall, flow.KindCondition, "API response is tested by a condition", 0),
	allow(flow.KindAPICall, flow.KindDatabase, "API response is stored", 0),

	allow(flow.KindDatabase, flow.KindPage, "Stored data is shown on a page", 0),
	allow(flow.KindDatabase, flow.KindEnd, "Storing data ends the flow", 0),
}

// DataTypeCompat maps each source data type to the target types it may
// feed. Generic targets accept anything; a generic source feeds anything.
var DataTypeCompat = map[flow.DataType][]flow.DataType{
	flow.DataFlow:       {flow.DataFlow, flow.DataData},
	flow.DataForm:       {flow.DataFlow, flow.DataData, flow.DataValidation},
	flow.DataBoolean:    {flow.DataFlow, flow.DataData},
	flow.DataData:       {flow.DataData, flow.DataNumber, flow.DataValidation, flow.DataFlow},
	flow.DataNumber:     {flow.DataNumber, flow.DataData, flow.DataFlow},
	flow.DataValidation: {flow.DataFlow},
	flow.DataAPI:        {flow.DataFlow, flow.DataData},
}

// DataTypesCompatible reports whether a source type may feed a target
// type. An empty type on either side skips the check.
func DataTypesCompatible(source, target flow.DataType) bool {
	if source == "" || target == "" {
		return true
	}
	if source == flow.DataGeneric || target == flow.DataGeneric {
		return true
	}
	return slices.Contains(DataTypeCompat[source], target)
}

// Result is the verdict on a proposed connection.
type Result struct {
	Valid  bool
	Reason string
	Rule   *Rule
}

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Engine evaluates connections against a compatibility table.
type Engine struct {
	table *Table
}

// NewEngine returns an engine over the given table; nil selects the
// default rules.
func NewEngine(t *Table) *Engine {
	if t == nil {
		t = NewTable(DefaultRules)
	}
	return &Engine{table: t}
}

// Table returns the engine's compatibility table.
func (e *Engine) Table() *Table {
	return e.table
}

// IsValidConnection decides whether an edge from source to target may be
// created in f. Checks run in a fixed order and stop at the first
// failure: self connection, direction, kind table, duplicate, outgoing
// cap, data types.
func (e *Engine) IsValidConnection(f *flow.ServiceFlow, source, target flow.ConnectionPoint) Result {
	if source.NodeID == target.NodeID {
		return reject("A node cannot connect to itself")
	}

	if source.Direction != flow.Output || target.Direction != flow.Input {
		return reject("Connections must run from an output to an input")
	}

	srcNode, ok := f.FindNode(source.NodeID)
	if !ok {
		return reject("Source node %q not found", source.NodeID)
	}
	dstNode, ok := f.FindNode(target.NodeID)
	if !ok {
		return reject("Target node %q not found", target.NodeID)
	}
	if !srcNode.Kind.HasOutput() {
		return reject("%s nodes have no outputs", srcNode.Kind)
	}
	if !dstNode.Kind.HasInput() {
		return reject("%s nodes do not accept incoming connections", dstNode.Kind)
	}

	rule, ok := e.table.Lookup(srcNode.Kind, dstNode.Kind)
	if !ok {
		return reject("%s cannot connect to %s", srcNode.Kind, dstNode.Kind)
	}
	if !rule.Allowed {
		return Result{Reason: rule.Description, Rule: &rule}
	}

	if f.HasEdge(srcNode.ID, dstNode.ID) {
		return Result{Reason: "These nodes are already connected", Rule: &rule}
	}

	if rule.MaxConnections > 0 {
		if n := len(f.EdgesFrom(srcNode.ID)); n >= rule.MaxConnections {
			return Result{
				Reason: fmt.Sprintf("%s allows at most %d outgoing connection(s)",
					srcNode.Label, rule.MaxConnections),
				Rule: &rule,
			}
		}
	}

	if !DataTypesCompatible(source.DataType, target.DataType) {
		return Result{
			Reason: fmt.Sprintf("Data type %s cannot feed %s", source.DataType, target.DataType),
			Rule:   &rule,
		}
	}

	return Result{Valid: true, Reason: rule.Description, Rule: &rule}
}

// ValidTargets evaluates the source point against the input point of
// every other node, keyed by target node id.
func (e *Engine) ValidTargets(f *flow.ServiceFlow, source flow.ConnectionPoint) map[string]Result {
	results := make(map[string]Result)
	for _, n := range f.Nodes {
		if n.ID == source.NodeID {
			continue
		}
		in, ok := flow.InputPoint(n)
		if !ok {
			continue
		}
		results[n.ID] = e.IsValidConnection(f, source, in)
	}
	return results
}
