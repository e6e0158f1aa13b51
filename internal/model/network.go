package model

import (
	"errors"
	"fmt"
)

var (
	ErrNodeExists   = errors.New("node already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeExists   = errors.New("edge already exists")
	ErrBadEdgeType  = errors.New("unknown edge type")
)

type EdgeType int

const (
	EdgeUnknown EdgeType = iota
	EdgeEnhancer
	EdgeInhibitor
	EdgeDual
)

func (t EdgeType) String() string {
	switch t {
	case EdgeEnhancer:
		return "+"
	case EdgeInhibitor:
		return "-"
	case EdgeDual:
		return "+-"
	default:
		return "?"
	}
}

// ParseEdgeType accepts the sign notation used in topology files.
func ParseEdgeType(s string) (EdgeType, error) {
	switch s {
	case "+", "ac":
		return EdgeEnhancer, nil
	case "-", "in":
		return EdgeInhibitor, nil
	case "+-", "du":
		return EdgeDual, nil
	case "?", "", "xx":
		return EdgeUnknown, nil
	default:
		return EdgeUnknown, fmt.Errorf("%w: %q", ErrBadEdgeType, s)
	}
}

// Signed reports whether the edge carries a definite polarity.
func (t EdgeType) Signed() bool {
	return t == EdgeEnhancer || t == EdgeInhibitor
}

type Node struct {
	Label string
	IsTF  bool
}

// Edge endpoints are node indices.
type Edge struct {
	Source int
	Target int
	Type   EdgeType
}

// Network is an ordered set of genes and directed regulatory edges. Node
// order is the index of every state vector built from the network.
type Network struct {
	ID    string
	Nodes []Node
	Edges []Edge

	index map[string]int
}

func NewNetwork(id string) *Network {
	return &Network{ID: id, index: make(map[string]int)}
}

func (n *Network) AddNode(label string) (int, error) {
	if n.index == nil {
		n.reindex()
	}
	if _, ok := n.index[label]; ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeExists, label)
	}
	n.Nodes = append(n.Nodes, Node{Label: label})
	idx := len(n.Nodes) - 1
	n.index[label] = idx
	return idx, nil
}

// EnsureNode returns the index of label, adding it when absent.
func (n *Network) EnsureNode(label string) int {
	if idx, ok := n.NodeIndex(label); ok {
		return idx
	}
	idx, _ := n.AddNode(label)
	return idx
}

func (n *Network) NodeIndex(label string) (int, bool) {
	if n.index == nil {
		n.reindex()
	}
	idx, ok := n.index[label]
	return idx, ok
}

func (n *Network) AddEdge(source, target string, typ EdgeType) error {
	s, ok := n.NodeIndex(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	t, ok := n.NodeIndex(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}
	if n.EdgeIndex(s, t) >= 0 {
		return fmt.Errorf("%w: %s -> %s", ErrEdgeExists, source, target)
	}
	n.Edges = append(n.Edges, Edge{Source: s, Target: t, Type: typ})
	return nil
}

// EdgeIndex returns the position of the source->target edge or -1.
func (n *Network) EdgeIndex(source, target int) int {
	for i, e := range n.Edges {
		if e.Source == source && e.Target == target {
			return i
		}
	}
	return -1
}

func (n *Network) SetEdgeType(source, target int, typ EdgeType) error {
	i := n.EdgeIndex(source, target)
	if i < 0 {
		return fmt.Errorf("%w: edge %d -> %d", ErrNodeNotFound, source, target)
	}
	n.Edges[i].Type = typ
	return nil
}

// Inputs lists the regulators of target in edge insertion order.
func (n *Network) Inputs(target int) []int {
	var inputs []int
	for _, e := range n.Edges {
		if e.Target == target {
			inputs = append(inputs, e.Source)
		}
	}
	return inputs
}

func (n *Network) Targets(source int) []int {
	var targets []int
	for _, e := range n.Edges {
		if e.Source == source {
			targets = append(targets, e.Target)
		}
	}
	return targets
}

// MarkRegulators flags every node with at least one outgoing edge as a
// transcription factor.
func (n *Network) MarkRegulators() {
	for i := range n.Nodes {
		n.Nodes[i].IsTF = false
	}
	for _, e := range n.Edges {
		n.Nodes[e.Source].IsTF = true
	}
}

func (n *Network) Regulators() []int {
	var out []int
	for i, node := range n.Nodes {
		if node.IsTF {
			out = append(out, i)
		}
	}
	return out
}

func (n *Network) Labels() []string {
	labels := make([]string, len(n.Nodes))
	for i, node := range n.Nodes {
		labels[i] = node.Label
	}
	return labels
}

func (n *Network) Size() int {
	return len(n.Nodes)
}

func (n *Network) Clone() *Network {
	out := &Network{
		ID:    n.ID,
		Nodes: append([]Node(nil), n.Nodes...),
		Edges: append([]Edge(nil), n.Edges...),
	}
	out.reindex()
	return out
}

func (n *Network) reindex() {
	n.index = make(map[string]int, len(n.Nodes))
	for i, node := range n.Nodes {
		n.index[node.Label] = i
	}
}
