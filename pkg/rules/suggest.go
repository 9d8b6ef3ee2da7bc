package rules

import (
	"math"
	"slices"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// Suggestion ranking constants.
const (
	BaseConfidence  = 0.5
	ProximityBoost  = 0.2
	ProximityRadius = 300.0
	MaxSuggestions  = 5
)

// commonPatterns boosts kind pairs that appear in most flows.
var commonPatterns = map[pair]float64{
	{flow.KindStart, flow.KindPage}:    0.9,
	{flow.KindDecision, flow.KindPage}: 0.8,
	{flow.KindPage, flow.KindEnd}:      0.7,
}

// Suggestion is a ranked, advisory connection target.
type Suggestion struct {
	TargetID   string
	Confidence float64
	Reason     string
	Distance   float64
}

// Suggest ranks the nodes the given node could connect to next. It is
// advisory only and never changes the flow.
func (e *Engine) Suggest(f *flow.ServiceFlow, nodeID string) []Suggestion {
	src, ok := f.FindNode(nodeID)
	if !ok {
		return nil
	}
	out, ok := flow.OutputPoint(*src, 0)
	if !ok {
		return nil
	}

	order := make(map[string]int, len(f.Nodes))
	var result []Suggestion
	for i, n := range f.Nodes {
		order[n.ID] = i
		if n.ID == nodeID {
			continue
		}
		in, ok := flow.InputPoint(n)
		if !ok {
			continue
		}
		verdict := e.IsValidConnection(f, out, in)
		if !verdict.Valid {
			continue
		}

		confidence := BaseConfidence
		if boost, ok := commonPatterns[pair{src.Kind, n.Kind}]; ok {
			confidence = boost
		}
		dist := src.Position.Dist(n.Position)
		if dist < ProximityRadius {
			confidence += ProximityBoost
		}
		result = append(result, Suggestion{
			TargetID:   n.ID,
			Confidence: math.Min(confidence, 1),
			Reason:     verdict.Reason,
			Distance:   dist,
		})
	}

	slices.SortStableFunc(result, func(a, b Suggestion) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return order[a.TargetID] - order[b.TargetID]
	})

	if len(result) > MaxSuggestions {
		result = result[:MaxSuggestions]
	}
	return result
}
