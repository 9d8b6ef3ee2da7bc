package flow

import "fmt"

// Kind identifies the semantic type of a node.
type Kind string

const (
	KindStart       Kind = "start"
	KindEnd         Kind = "end"
	KindPage        Kind = "page"
	KindDecision    Kind = "decision"
	KindCondition   Kind = "condition"
	KindField       Kind = "field"
	KindValidation  Kind = "validation"
	KindCalculation Kind = "calculation"
	KindAPICall     Kind = "api_call"
	KindDatabase    Kind = "database"
)

// Kinds lists every node kind in palette order.
var Kinds = []Kind{
	KindStart,
	KindEnd,
	KindPage,
	KindDecision,
	KindCondition,
	KindField,
	KindValidation,
	KindCalculation,
	KindAPICall,
	KindDatabase,
}

// ParseKind converts a string to a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// HasInput reports whether nodes of this kind expose an input point.
func (k Kind) HasInput() bool {
	return k != KindStart
}

// HasOutput reports whether nodes of this kind expose output points.
func (k Kind) HasOutput() bool {
	return k != KindEnd
}

// Port describes one named output of a node kind.
type Port struct {
	Name      string // display name, e.g. "Yes"
	Condition string // tag stored on edges created from this port
}

var namedOutputs = map[Kind][]Port{
	KindDecision:   {{"Yes", "true"}, {"No", "false"}},
	KindCondition:  {{"True", "true"}, {"False", "false"}},
	KindValidation: {{"Valid", "valid"}, {"Invalid", "invalid"}},
}

// Outputs returns the output ports of a kind. Kinds without named
// outputs have a single unnamed port; end has none.
func (k Kind) Outputs() []Port {
	if !k.HasOutput() {
		return nil
	}
	if ports, ok := namedOutputs[k]; ok {
		return ports
	}
	return []Port{{}}
}

// Icon returns a short symbolic name for the kind, used by renderers.
func (k Kind) Icon() string {
	switch k {
	case KindStart:
		return "play_circle"
	case KindEnd:
		return "stop_circle"
	case KindPage:
		return "description"
	case KindDecision:
		return "help"
	case KindCondition:
		return "rule"
	case KindField:
		return "input"
	case KindValidation:
		return "verified"
	case KindCalculation:
		return "calculate"
	case KindAPICall:
		return "api"
	case KindDatabase:
		return "storage"
	}
	return "crop_square"
}

// Glyph returns a single-cell symbol for terminal rendering.
func (k Kind) Glyph() rune {
	switch k {
	case KindStart:
		return '▶'
	case KindEnd:
		return '■'
	case KindPage:
		return '▤'
	case KindDecision:
		return '◆'
	case KindCondition:
		return '?'
	case KindField:
		return '▭'
	case KindValidation:
		return '✓'
	case KindCalculation:
		return '∑'
	case KindAPICall:
		return '⇄'
	case KindDatabase:
		return '⛁'
	}
	return '□'
}

// DataType is the coarse type carried by a connection point, used for
// compatibility checks between ports.
type DataType string

const (
	DataFlow       DataType = "flow"
	DataForm       DataType = "form"
	DataData       DataType = "data"
	DataBoolean    DataType = "boolean"
	DataNumber     DataType = "number"
	DataAPI        DataType = "api"
	DataValidation DataType = "validation"
	DataGeneric    DataType = "generic"
)

// InputType returns the data type accepted by the kind's input point.
func (k Kind) InputType() DataType {
	switch k {
	case KindPage, KindEnd:
		return DataFlow
	case KindDecision, KindCondition, KindField, KindAPICall, KindDatabase:
		return DataData
	case KindValidation:
		return DataValidation
	case KindCalculation:
		return DataNumber
	}
	return DataGeneric
}

// OutputType returns the data type produced by the kind's output points.
func (k Kind) OutputType() DataType {
	switch k {
	case KindStart:
		return DataFlow
	case KindPage:
		return DataForm
	case KindDecision, KindCondition:
		return DataBoolean
	case KindField, KindDatabase:
		return DataData
	case KindValidation:
		return DataValidation
	case KindCalculation:
		return DataNumber
	case KindAPICall:
		return DataAPI
	}
	return DataGeneric
}
