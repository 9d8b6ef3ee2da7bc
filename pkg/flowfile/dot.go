package flowfile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

var dotShapes = map[flow.Kind]string{
	flow.KindStart:       "shape=circle, style=filled, fillcolor=\"#e8f5e9\"",
	flow.KindEnd:         "shape=doublecircle, style=filled, fillcolor=\"#ffebee\"",
	flow.KindPage:        "shape=box, style=rounded",
	flow.KindDecision:    "shape=diamond",
	flow.KindCondition:   "shape=diamond, style=dashed",
	flow.KindField:       "shape=note",
	flow.KindValidation:  "shape=hexagon",
	flow.KindCalculation: "shape=parallelogram",
	flow.KindAPICall:     "shape=component",
	flow.KindDatabase:    "shape=cylinder",
}

// GenerateDOT converts a flow to Graphviz DOT format.
func GenerateDOT(f *flow.ServiceFlow, title string) string {
	var sb strings.Builder

	sb.WriteString("digraph Flow {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [fontname=\"Helvetica\", fontsize=11];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("\n")

	if title == "" {
		title = f.Name
	}
	if title != "" {
		sb.WriteString("    labelloc=\"t\";\n")
		sb.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOT(title)))
		sb.WriteString("\n")
	}

	for _, n := range f.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", %s];\n",
			escapeDOT(n.ID), escapeDOT(label), dotShapes[n.Kind]))
	}
	if len(f.Connections) > 0 {
		sb.WriteString("\n")
	}

	for _, c := range f.Connections {
		var attrs []string
		if c.Label != "" {
			attrs = append(attrs, fmt.Sprintf("label=\"%s\"", escapeDOT(c.Label)))
		}
		switch c.Condition {
		case "false", "invalid":
			attrs = append(attrs, "style=dashed")
		}
		sb.WriteString(fmt.Sprintf("    \"%s\" -> \"%s\"", escapeDOT(c.SourceID), escapeDOT(c.TargetID)))
		if len(attrs) > 0 {
			sb.WriteString(" [" + strings.Join(attrs, ", ") + "]")
		}
		sb.WriteString(";\n")
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
