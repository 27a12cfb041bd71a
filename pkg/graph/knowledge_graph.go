package graph

import (
	"sort"

	"github.com/txgnn-explorer/backend/pkg/common"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
)

// relationLine is a single attention edge stored in the multigraph.
// Parallel lines between the same pair of nodes are kept apart by UID.
type relationLine struct {
	F, T     multi.Node
	UID      int64
	Relation string
	Layer1   float64
	Layer2   float64
}

func (l relationLine) From() gonum.Node { return l.F }
func (l relationLine) To() gonum.Node   { return l.T }
func (l relationLine) ID() int64        { return l.UID }

func (l relationLine) ReversedLine() gonum.Line {
	l.F, l.T = l.T, l.F
	return l
}

// KnowledgeGraph is the TxGNN knowledge graph held in memory. Node ids are
// strings in the data files and mapped to dense int64 ids for gonum.
type KnowledgeGraph struct {
	g         *multi.DirectedGraph
	ids       map[string]int64
	nodes     []common.Node
	relations map[string]string
	lines     int64
}

func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		g:         multi.NewDirectedGraph(),
		ids:       make(map[string]int64),
		relations: make(map[string]string),
	}
}

// AddNode registers a node. Type and name of the first occurrence win.
func (kg *KnowledgeGraph) AddNode(id, nodeType, name string) {
	if _, ok := kg.ids[id]; ok {
		return
	}
	idx := int64(len(kg.nodes))
	kg.ids[id] = idx
	kg.nodes = append(kg.nodes, common.Node{ID: id, Type: nodeType, Name: name})
	kg.g.AddNode(multi.Node(idx))
}

// AddEdge adds a directed edge. Unknown endpoints are added with type
// "unknown"; parallel edges are allowed.
func (kg *KnowledgeGraph) AddEdge(e common.Edge) {
	kg.AddNode(e.Source, common.NodeTypeUnknown, "")
	kg.AddNode(e.Target, common.NodeTypeUnknown, "")

	rel, ok := kg.relations[e.Relation]
	if !ok {
		kg.relations[e.Relation] = e.Relation
		rel = e.Relation
	}

	kg.g.SetLine(relationLine{
		F:        multi.Node(kg.ids[e.Source]),
		T:        multi.Node(kg.ids[e.Target]),
		UID:      kg.lines,
		Relation: rel,
		Layer1:   e.Layer1Att,
		Layer2:   e.Layer2Att,
	})
	kg.lines++
}

func (kg *KnowledgeGraph) HasNode(id string) bool {
	_, ok := kg.ids[id]
	return ok
}

// Node returns the node with the given id.
func (kg *KnowledgeGraph) Node(id string) (common.Node, bool) {
	idx, ok := kg.ids[id]
	if !ok {
		return common.Node{}, false
	}
	return kg.nodes[idx], true
}

// NodeType returns the type of id, or "unknown".
func (kg *KnowledgeGraph) NodeType(id string) string {
	n, ok := kg.Node(id)
	if !ok || n.Type == "" {
		return common.NodeTypeUnknown
	}
	return n.Type
}

func (kg *KnowledgeGraph) NodeCount() int {
	return len(kg.nodes)
}

func (kg *KnowledgeGraph) EdgeCount() int {
	return int(kg.lines)
}

// Nodes returns every node in insertion order.
func (kg *KnowledgeGraph) Nodes() []common.Node {
	return append([]common.Node(nil), kg.nodes...)
}

// NodesOfType returns the nodes of nodeType sorted by id.
func (kg *KnowledgeGraph) NodesOfType(nodeType string) []common.Node {
	var out []common.Node
	for _, n := range kg.nodes {
		if n.Type == nodeType {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InEdges returns every edge ending at id.
func (kg *KnowledgeGraph) InEdges(id string) []common.Edge {
	idx, ok := kg.ids[id]
	if !ok {
		return nil
	}
	var out []common.Edge
	from := kg.g.To(idx)
	for from.Next() {
		out = kg.appendLines(out, from.Node().ID(), idx)
	}
	return out
}

// OutEdges returns every edge starting at id.
func (kg *KnowledgeGraph) OutEdges(id string) []common.Edge {
	idx, ok := kg.ids[id]
	if !ok {
		return nil
	}
	var out []common.Edge
	to := kg.g.From(idx)
	for to.Next() {
		out = kg.appendLines(out, idx, to.Node().ID())
	}
	return out
}

func (kg *KnowledgeGraph) appendLines(out []common.Edge, uid, vid int64) []common.Edge {
	lines := kg.g.Lines(uid, vid)
	for lines.Next() {
		l, ok := lines.Line().(relationLine)
		if !ok {
			continue
		}
		out = append(out, common.Edge{
			Source:    kg.nodes[uid].ID,
			Target:    kg.nodes[vid].ID,
			Relation:  l.Relation,
			Layer1Att: l.Layer1,
			Layer2Att: l.Layer2,
		})
	}
	return out
}

// ForEachEdge calls fn for every edge, grouped by source node in insertion
// order of the nodes.
func (kg *KnowledgeGraph) ForEachEdge(fn func(common.Edge)) {
	for _, n := range kg.nodes {
		for _, e := range kg.OutEdges(n.ID) {
			fn(e)
		}
	}
}

// Relations returns the distinct relation names sorted.
func (kg *KnowledgeGraph) Relations() []string {
	out := make([]string, 0, len(kg.relations))
	for r := range kg.relations {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// EdgesOfType returns every edge with the given relation.
func (kg *KnowledgeGraph) EdgesOfType(relation string) []common.Edge {
	var out []common.Edge
	kg.ForEachEdge(func(e common.Edge) {
		if e.Relation == relation {
			out = append(out, e)
		}
	})
	return out
}
