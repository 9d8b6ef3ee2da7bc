// Package flowfile reads and writes service flow documents and renders
// them to DOT and PNG.
package flowfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// ErrMalformed is returned when a document cannot be decoded or breaks
// the graph invariants.
var ErrMalformed = errors.New("malformed flow document")

// ParseJSON parses a flow from JSON and checks its invariants.
func ParseJSON(data []byte) (*flow.ServiceFlow, error) {
	var f flow.ServiceFlow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return normalise(&f)
}

// ReadJSON reads a whole JSON document from r.
func ReadJSON(r io.Reader) (*flow.ServiceFlow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseJSON(data)
}

// ToJSON converts a flow to indented JSON.
func ToJSON(f *flow.ServiceFlow) ([]byte, error) {
	out := *f
	if out.Nodes == nil {
		out.Nodes = []flow.Node{}
	}
	if out.Connections == nil {
		out.Connections = []flow.Connection{}
	}
	return json.MarshalIndent(&out, "", "  ")
}

// WriteJSON writes the flow to w as indented JSON.
func WriteJSON(w io.Writer, f *flow.ServiceFlow) error {
	data, err := ToJSON(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ExportFilename returns the conventional file name for a flow export.
func ExportFilename(f *flow.ServiceFlow) string {
	name := strings.Join(strings.Fields(f.Name), "-")
	if name == "" {
		name = "untitled"
	}
	return "flow-" + name + ".json"
}

func normalise(f *flow.ServiceFlow) (*flow.ServiceFlow, error) {
	if f.Nodes == nil {
		f.Nodes = []flow.Node{}
	}
	if f.Connections == nil {
		f.Connections = []flow.Connection{}
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return f, nil
}
