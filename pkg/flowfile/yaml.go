package flowfile

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// ToYAML converts a flow to YAML. Field names follow the JSON document.
func ToYAML(f *flow.ServiceFlow) ([]byte, error) {
	data, err := ToJSON(f)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// ParseYAML parses a flow from YAML produced by ToYAML or written by hand
// with the same field names.
func ParseYAML(data []byte) (*flow.ServiceFlow, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ParseJSON(raw)
}
