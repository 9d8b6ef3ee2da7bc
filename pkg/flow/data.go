package flow

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// NodeData holds the kind-specific attributes of a node. Each kind has
// exactly one variant; DataFor returns its zero value.
type NodeData interface {
	Kind() Kind
	clone() NodeData
}

// StartData carries no attributes.
type StartData struct{}

// EndData describes how the flow terminates.
type EndData struct {
	Outcome string `json:"outcome,omitempty"`
}

// FieldRef references a backend field shown on a page.
type FieldRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type,omitempty"`
	Mandatory   bool   `json:"mandatory,omitempty"`
}

// PageData describes a form page or field category.
type PageData struct {
	Description string     `json:"description,omitempty"`
	Service     string     `json:"service,omitempty"`
	PageName    string     `json:"pageName,omitempty"`
	PageNameAra string     `json:"pageNameAra,omitempty"`
	ActiveInd   bool       `json:"activeInd"`
	CategoryID  int        `json:"categoryId,omitempty"`
	Fields      []FieldRef `json:"fields,omitempty"`
}

// DecisionData holds the question a decision node branches on.
type DecisionData struct {
	Question string `json:"question,omitempty"`
}

// ConditionRule is one comparison evaluated by a condition node.
type ConditionRule struct {
	Field     string `json:"field"`
	Operation string `json:"operation"`
	Value     string `json:"value"`
}

// ConditionData holds the rules of a condition node.
type ConditionData struct {
	TargetField string          `json:"targetField,omitempty"`
	Rules       []ConditionRule `json:"conditionRules,omitempty"`
}

// FieldData mirrors a backend form field.
type FieldData struct {
	FieldID     int    `json:"fieldId,omitempty"`
	FieldName   string `json:"fieldName,omitempty"`
	DisplayName string `json:"fieldDisplayName,omitempty"`
	FieldType   string `json:"fieldType,omitempty"`
	Mandatory   bool   `json:"mandatory,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	Sequence    int    `json:"sequence,omitempty"`
}

// ValidationRule is one check applied by a validation node.
type ValidationRule struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationData holds the rules of a validation node.
type ValidationData struct {
	Rules []ValidationRule `json:"rules,omitempty"`
}

// CalculationData holds an expression and the field receiving its result.
type CalculationData struct {
	Expression string `json:"expression,omitempty"`
	Target     string `json:"target,omitempty"`
}

// APICallData describes an outbound request.
type APICallData struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// DatabaseData describes a persistence step.
type DatabaseData struct {
	Table     string `json:"table,omitempty"`
	Operation string `json:"operation,omitempty"`
}

func (StartData) Kind() Kind       { return KindStart }
func (EndData) Kind() Kind         { return KindEnd }
func (PageData) Kind() Kind        { return KindPage }
func (DecisionData) Kind() Kind    { return KindDecision }
func (ConditionData) Kind() Kind   { return KindCondition }
func (FieldData) Kind() Kind       { return KindField }
func (ValidationData) Kind() Kind  { return KindValidation }
func (CalculationData) Kind() Kind { return KindCalculation }
func (APICallData) Kind() Kind     { return KindAPICall }
func (DatabaseData) Kind() Kind    { return KindDatabase }

func (d StartData) clone() NodeData       { return d }
func (d EndData) clone() NodeData         { return d }
func (d DecisionData) clone() NodeData    { return d }
func (d FieldData) clone() NodeData       { return d }
func (d CalculationData) clone() NodeData { return d }
func (d DatabaseData) clone() NodeData    { return d }

func (d PageData) clone() NodeData {
	d.Fields = slices.Clone(d.Fields)
	return d
}

func (d ConditionData) clone() NodeData {
	d.Rules = slices.Clone(d.Rules)
	return d
}

func (d ValidationData) clone() NodeData {
	d.Rules = slices.Clone(d.Rules)
	return d
}

func (d APICallData) clone() NodeData {
	d.Headers = maps.Clone(d.Headers)
	return d
}

// DataFor returns the zero data variant for a kind, or nil for an
// unknown kind.
func DataFor(k Kind) NodeData {
	switch k {
	case KindStart:
		return StartData{}
	case KindEnd:
		return EndData{}
	case KindPage:
		return PageData{ActiveInd: true}
	case KindDecision:
		return DecisionData{}
	case KindCondition:
		return ConditionData{}
	case KindField:
		return FieldData{}
	case KindValidation:
		return ValidationData{}
	case KindCalculation:
		return CalculationData{}
	case KindAPICall:
		return APICallData{}
	case KindDatabase:
		return DatabaseData{}
	}
	return nil
}

// DecodeData decodes raw JSON into the data variant of kind k. Empty
// input yields the zero variant.
func DecodeData(k Kind, raw []byte) (NodeData, error) {
	zero := DataFor(k)
	if zero == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return zero, nil
	}

	var err error
	var d NodeData
	switch zero.(type) {
	case StartData:
		var v StartData
		err = json.Unmarshal(raw, &v)
		d = v
	case EndData:
		var v EndData
		err = json.Unmarshal(raw, &v)
		d = v
	case PageData:
		v := PageData{ActiveInd: true}
		err = json.Unmarshal(raw, &v)
		d = v
	case DecisionData:
		var v DecisionData
		err = json.Unmarshal(raw, &v)
		d = v
	case ConditionData:
		var v ConditionData
		err = json.Unmarshal(raw, &v)
		d = v
	case FieldData:
		var v FieldData
		err = json.Unmarshal(raw, &v)
		d = v
	case ValidationData:
		var v ValidationData
		err = json.Unmarshal(raw, &v)
		d = v
	case CalculationData:
		var v CalculationData
		err = json.Unmarshal(raw, &v)
		d = v
	case APICallData:
		var v APICallData
		err = json.Unmarshal(raw, &v)
		d = v
	case DatabaseData:
		var v DatabaseData
		err = json.Unmarshal(raw, &v)
		d = v
	}
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", k, err)
	}
	return d, nil
}
