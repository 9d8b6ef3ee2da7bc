// Package flow provides the service flow graph model: typed nodes,
// labeled connections between them, and the commands that mutate a flow
// while keeping its structural invariants.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// Canvas extent and node footprint, in canvas units.
const (
	CanvasWidth  = 4000
	CanvasHeight = 4000
	NodeWidth    = 150
	NodeHeight   = 60
)

var (
	ErrUnknownKind        = errors.New("unknown node kind")
	ErrEmptyID            = errors.New("empty id")
	ErrNodeExists         = errors.New("node already exists")
	ErrNodeNotFound       = errors.New("node not found")
	ErrConnectionExists   = errors.New("connection already exists")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrDuplicateEdge      = errors.New("nodes are already connected")
	ErrSelfLoop           = errors.New("a node cannot connect to itself")
	ErrOutOfBounds        = errors.New("position outside canvas")
	ErrDataMismatch       = errors.New("node data does not match kind")
	ErrNoInput            = errors.New("node kind has no input")
	ErrNoOutput           = errors.New("node kind has no output")
)

// Node is a typed vertex in the flow graph.
type Node struct {
	ID        string
	Kind      Kind
	Label     string
	Position  geom.Point
	Data      NodeData
	Collapsed bool
}

// Rect returns the node's footprint in canvas space.
func (n Node) Rect() geom.Rect {
	return geom.RectAt(n.Position, NodeWidth, NodeHeight)
}

// Center returns the centre of the node's footprint.
func (n Node) Center() geom.Point {
	return n.Rect().Center()
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	if n.Data != nil {
		n.Data = n.Data.clone()
	}
	return n
}

type nodeJSON struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"type"`
	Label     string          `json:"label"`
	Position  geom.Point      `json:"position"`
	Data      json.RawMessage `json:"data,omitempty"`
	Collapsed bool            `json:"collapsed,omitempty"`
}

// MarshalJSON encodes the node with its kind under "type".
func (n Node) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		data = DataFor(n.Kind)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{
		ID:        n.ID,
		Kind:      n.Kind,
		Label:     n.Label,
		Position:  n.Position,
		Data:      raw,
		Collapsed: n.Collapsed,
	})
}

// UnmarshalJSON decodes a node, selecting the data variant from "type".
func (n *Node) UnmarshalJSON(b []byte) error {
	var j nodeJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if !j.Kind.Valid() {
		return fmt.Errorf("node %q: %w: %q", j.ID, ErrUnknownKind, j.Kind)
	}
	data, err := DecodeData(j.Kind, j.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", j.ID, err)
	}
	*n = Node{
		ID:        j.ID,
		Kind:      j.Kind,
		Label:     j.Label,
		Position:  j.Position,
		Data:      data,
		Collapsed: j.Collapsed,
	}
	return nil
}

// Connection is a directed edge between two nodes.
type Connection struct {
	ID        string `json:"id"`
	SourceID  string `json:"sourceId"`
	TargetID  string `json:"targetId"`
	Label     string `json:"label,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// ServiceFlow is the document being edited.
type ServiceFlow struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Nodes       []Node         `json:"nodes"`
	Connections []Connection   `json:"connections"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// New creates a flow holding a single start node.
func New(name string) *ServiceFlow {
	if name == "" {
		name = "New Service Flow"
	}
	return &ServiceFlow{
		Name: name,
		Nodes: []Node{{
			ID:       "start-1",
			Kind:     KindStart,
			Label:    "Start",
			Position: geom.Pt(100, 100),
			Data:     StartData{},
		}},
		Connections: make([]Connection, 0),
		Metadata: map[string]any{
			"created": time.Now().UTC().Format(time.RFC3339),
			"version": "1.0",
		},
	}
}

// NewID returns a fresh identifier with the given prefix.
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// InBounds reports whether a node placed at p lies inside the canvas.
func InBounds(p geom.Point) bool {
	return p.X >= 0 && p.Y >= 0 &&
		p.X <= CanvasWidth-NodeWidth && p.Y <= CanvasHeight-NodeHeight
}

// FindNode returns the node with the given id.
func (f *ServiceFlow) FindNode(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// NodeIndex returns the index of a node, or -1 if not found.
func (f *ServiceFlow) NodeIndex(id string) int {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// FindConnection returns the connection with the given id.
func (f *ServiceFlow) FindConnection(id string) (*Connection, bool) {
	for i := range f.Connections {
		if f.Connections[i].ID == id {
			return &f.Connections[i], true
		}
	}
	return nil, false
}

// EdgesFrom returns the connections leaving a node.
func (f *ServiceFlow) EdgesFrom(id string) []Connection {
	var result []Connection
	for _, c := range f.Connections {
		if c.SourceID == id {
			result = append(result, c)
		}
	}
	return result
}

// EdgesTo returns the connections entering a node.
func (f *ServiceFlow) EdgesTo(id string) []Connection {
	var result []Connection
	for _, c := range f.Connections {
		if c.TargetID == id {
			result = append(result, c)
		}
	}
	return result
}

// HasEdge reports whether a connection from source to target exists.
func (f *ServiceFlow) HasEdge(sourceID, targetID string) bool {
	for _, c := range f.Connections {
		if c.SourceID == sourceID && c.TargetID == targetID {
			return true
		}
	}
	return false
}

// Bounds returns the rectangle covering every node footprint. The second
// result is false for a flow without nodes.
func (f *ServiceFlow) Bounds() (geom.Rect, bool) {
	if len(f.Nodes) == 0 {
		return geom.Rect{}, false
	}
	r := f.Nodes[0].Rect()
	for _, n := range f.Nodes[1:] {
		r = r.Union(n.Rect())
	}
	return r, true
}

// OfKind returns the nodes of kind k in document order.
func (f *ServiceFlow) OfKind(k Kind) []Node {
	var result []Node
	for _, n := range f.Nodes {
		if n.Kind == k {
			result = append(result, n)
		}
	}
	return result
}

// Clone returns a deep copy of the flow.
func (f *ServiceFlow) Clone() *ServiceFlow {
	c := &ServiceFlow{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Nodes:       make([]Node, len(f.Nodes)),
		Connections: slices.Clone(f.Connections),
		Metadata:    maps.Clone(f.Metadata),
	}
	if c.Connections == nil {
		c.Connections = make([]Connection, 0)
	}
	for i, n := range f.Nodes {
		c.Nodes[i] = n.Clone()
	}
	return c
}

func checkNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node: %w", ErrEmptyID)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("node %q: %w: %q", n.ID, ErrUnknownKind, n.Kind)
	}
	if n.Data == nil {
		n.Data = DataFor(n.Kind)
	} else if n.Data.Kind() != n.Kind {
		return fmt.Errorf("node %q: %w (%s data on %s node)",
			n.ID, ErrDataMismatch, n.Data.Kind(), n.Kind)
	}
	if !InBounds(n.Position) {
		return fmt.Errorf("node %q at (%.0f,%.0f): %w",
			n.ID, n.Position.X, n.Position.Y, ErrOutOfBounds)
	}
	return nil
}

// AddNode appends a node. Missing data is filled with the kind's zero
// variant.
func (f *ServiceFlow) AddNode(n Node) error {
	if err := checkNode(&n); err != nil {
		return err
	}
	if f.NodeIndex(n.ID) >= 0 {
		return fmt.Errorf("node %q: %w", n.ID, ErrNodeExists)
	}
	f.Nodes = append(f.Nodes, n.Clone())
	return nil
}

// UpdateNode replaces the node with the same id. A kind change is refused
// when it would strand existing connections on a port the new kind lacks.
func (f *ServiceFlow) UpdateNode(n Node) error {
	idx := f.NodeIndex(n.ID)
	if idx < 0 {
		return fmt.Errorf("node %q: %w", n.ID, ErrNodeNotFound)
	}
	if err := checkNode(&n); err != nil {
		return err
	}
	if n.Kind != f.Nodes[idx].Kind {
		if !n.Kind.HasInput() && len(f.EdgesTo(n.ID)) > 0 {
			return fmt.Errorf("node %q as %s: %w", n.ID, n.Kind, ErrNoInput)
		}
		if !n.Kind.HasOutput() && len(f.EdgesFrom(n.ID)) > 0 {
			return fmt.Errorf("node %q as %s: %w", n.ID, n.Kind, ErrNoOutput)
		}
	}
	f.Nodes[idx] = n.Clone()
	return nil
}

// MoveNode sets a node's position.
func (f *ServiceFlow) MoveNode(id string, p geom.Point) error {
	n, ok := f.FindNode(id)
	if !ok {
		return fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	if !InBounds(p) {
		return fmt.Errorf("node %q at (%.0f,%.0f): %w", id, p.X, p.Y, ErrOutOfBounds)
	}
	n.Position = p
	return nil
}

// RemoveNode deletes a node together with every connection touching it
// and returns the removed connections.
func (f *ServiceFlow) RemoveNode(id string) ([]Connection, error) {
	idx := f.NodeIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}
	f.Nodes = slices.Delete(f.Nodes, idx, idx+1)

	var removed []Connection
	kept := f.Connections[:0]
	for _, c := range f.Connections {
		if c.SourceID == id || c.TargetID == id {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	f.Connections = kept
	return removed, nil
}

// AddConnection appends a connection after checking the structural
// invariants: known endpoints, no self-loop, one edge per ordered pair.
// Kind compatibility is the rules engine's concern, not the model's.
func (f *ServiceFlow) AddConnection(c Connection) error {
	if c.ID == "" {
		return fmt.Errorf("connection: %w", ErrEmptyID)
	}
	if _, ok := f.FindConnection(c.ID); ok {
		return fmt.Errorf("connection %q: %w", c.ID, ErrConnectionExists)
	}
	if c.SourceID == c.TargetID {
		return fmt.Errorf("connection %q: %w", c.ID, ErrSelfLoop)
	}
	src, ok := f.FindNode(c.SourceID)
	if !ok {
		return fmt.Errorf("connection %q source %q: %w", c.ID, c.SourceID, ErrNodeNotFound)
	}
	dst, ok := f.FindNode(c.TargetID)
	if !ok {
		return fmt.Errorf("connection %q target %q: %w", c.ID, c.TargetID, ErrNodeNotFound)
	}
	if !src.Kind.HasOutput() {
		return fmt.Errorf("connection %q from %s: %w", c.ID, src.Kind, ErrNoOutput)
	}
	if !dst.Kind.HasInput() {
		return fmt.Errorf("connection %q to %s: %w", c.ID, dst.Kind, ErrNoInput)
	}
	if f.HasEdge(c.SourceID, c.TargetID) {
		return fmt.Errorf("connection %s -> %s: %w", c.SourceID, c.TargetID, ErrDuplicateEdge)
	}
	f.Connections = append(f.Connections, c)
	return nil
}

// RemoveConnection deletes a connection by id and returns it.
func (f *ServiceFlow) RemoveConnection(id string) (Connection, error) {
	for i, c := range f.Connections {
		if c.ID == id {
			f.Connections = slices.Delete(f.Connections, i, i+1)
			return c, nil
		}
	}
	return Connection{}, fmt.Errorf("connection %q: %w", id, ErrConnectionNotFound)
}

// Validate checks the structural invariants of a whole document, as
// needed after import.
func (f *ServiceFlow) Validate() error {
	seen := make(map[string]bool, len(f.Nodes))
	for i := range f.Nodes {
		n := f.Nodes[i]
		if err := checkNode(&n); err != nil {
			return err
		}
		if seen[n.ID] {
			return fmt.Errorf("node %q: %w", n.ID, ErrNodeExists)
		}
		seen[n.ID] = true
	}

	check := &ServiceFlow{Nodes: f.Nodes}
	for _, c := range f.Connections {
		if err := check.AddConnection(c); err != nil {
			return err
		}
	}
	return nil
}

// String returns a short summary of the flow.
func (f *ServiceFlow) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Flow: %s\n", f.Name))
	sb.WriteString(fmt.Sprintf("  Nodes: %d\n", len(f.Nodes)))
	sb.WriteString(fmt.Sprintf("  Connections: %d\n", len(f.Connections)))
	return sb.String()
}
