package pathgen

import (
	"context"
	"sort"
	"strings"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultMaxDepth = 4
	DefaultBranch   = 8
	DefaultMaxPaths = 500
)

// DefaultExcludedRelations are relations that never explain a treatment.
var DefaultExcludedRelations = []string{
	"rev_contraindication",
	"contraindication",
	"drug_drug",
	"rev_off-label use",
	"off-label use",
	"anatomy_protein_absent",
	"rev_anatomy_protein_absent",
}

// Options configures path search and scoring.
type Options struct {
	MaxDepth int
	Branch   int
	MaxPaths int
	Excluded []string
	// Layer selects the attention weight: 1 or 2 for a single layer, any
	// other value for the sum of both.
	Layer int
	// Enrichment divides every edge weight by the average of its relation.
	Enrichment bool
	Workers    int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Branch <= 0 {
		o.Branch = DefaultBranch
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = DefaultMaxPaths
	}
	if o.Excluded == nil {
		o.Excluded = DefaultExcludedRelations
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Path is a simple path through the graph. Edges keep their stored
// direction; Edges[i] connects Nodes[i] and Nodes[i+1].
type Path struct {
	Nodes []common.Node
	Edges []common.Edge
}

// Types returns the node type sequence, e.g. disease -> gene/protein -> drug.
func (p Path) Types() string {
	types := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		types[i] = n.Type
	}
	return strings.Join(types, " -> ")
}

// Names returns the node names, falling back to ids for unnamed nodes.
func (p Path) Names() string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name
		if names[i] == "" {
			names[i] = n.ID
		}
	}
	return strings.Join(names, " -> ")
}

// Weight returns the attention weight of e for layer.
func Weight(e common.Edge, layer int) float64 {
	switch layer {
	case 1:
		return e.Layer1Att
	case 2:
		return e.Layer2Att
	}
	return e.Score()
}

// RelationAverages returns the mean weight of every relation.
func RelationAverages(kg *graph.KnowledgeGraph, layer int) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	kg.ForEachEdge(func(e common.Edge) {
		sums[e.Relation] += Weight(e, layer)
		counts[e.Relation]++
	})
	out := make(map[string]float64, len(sums))
	for rel, sum := range sums {
		out[rel] = sum / float64(counts[rel])
	}
	return out
}

type hop struct {
	edge common.Edge
	next string
	w    float64
}

// FindPaths enumerates simple paths of at most MaxDepth edges between from
// and to, ignoring edge direction. At every node only the Branch heaviest
// hops are followed, though a hop reaching to is always taken. The search
// stops after MaxPaths paths.
func FindPaths(ctx context.Context, kg *graph.KnowledgeGraph, from, to string, opts Options) ([]Path, error) {
	opts = opts.withDefaults()
	if !kg.HasNode(from) || !kg.HasNode(to) || from == to {
		return nil, nil
	}

	excluded := make(map[string]struct{}, len(opts.Excluded))
	for _, r := range opts.Excluded {
		excluded[r] = struct{}{}
	}

	var (
		out     []Path
		visited = map[string]bool{from: true}
		nodes   = []string{from}
		edges   []common.Edge
		steps   int
	)

	var dfs func(at string) error
	dfs = func(at string) error {
		steps++
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(edges) >= opts.MaxDepth {
			return nil
		}

		last := len(edges) == opts.MaxDepth-1
		for _, h := range hops(kg, at, to, excluded, opts) {
			if len(out) >= opts.MaxPaths {
				return nil
			}
			if visited[h.next] || (last && h.next != to) {
				continue
			}
			nodes = append(nodes, h.next)
			edges = append(edges, h.edge)
			if h.next == to {
				out = append(out, materialize(kg, nodes, edges))
			} else {
				visited[h.next] = true
				if err := dfs(h.next); err != nil {
					return err
				}
				visited[h.next] = false
			}
			nodes = nodes[:len(nodes)-1]
			edges = edges[:len(edges)-1]
		}
		return nil
	}

	if err := dfs(from); err != nil {
		return nil, err
	}
	return out, nil
}

func hops(kg *graph.KnowledgeGraph, at, to string, excluded map[string]struct{}, opts Options) []hop {
	var all []hop
	add := func(e common.Edge, next string) {
		if _, skip := excluded[e.Relation]; skip {
			return
		}
		all = append(all, hop{edge: e, next: next, w: Weight(e, opts.Layer)})
	}
	for _, e := range kg.OutEdges(at) {
		add(e, e.Target)
	}
	for _, e := range kg.InEdges(at) {
		add(e, e.Source)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].w != all[j].w {
			return all[i].w > all[j].w
		}
		if all[i].next != all[j].next {
			return all[i].next < all[j].next
		}
		return all[i].edge.Relation < all[j].edge.Relation
	})

	out := make([]hop, 0, opts.Branch)
	for i, h := range all {
		if i < opts.Branch || h.next == to {
			out = append(out, h)
		}
	}
	return out
}

func materialize(kg *graph.KnowledgeGraph, ids []string, edges []common.Edge) Path {
	p := Path{
		Nodes: make([]common.Node, len(ids)),
		Edges: append([]common.Edge(nil), edges...),
	}
	for i, id := range ids {
		n, ok := kg.Node(id)
		if !ok {
			n = common.Node{ID: id, Type: common.NodeTypeUnknown}
		}
		p.Nodes[i] = n
	}
	return p
}

// ScorePath returns the mean edge weight of p. With enrichment every weight
// is divided by the average of its relation first.
func ScorePath(p Path, averages map[string]float64, layer int, enrichment bool) float64 {
	if len(p.Edges) == 0 {
		return 0
	}
	weights := make([]float64, len(p.Edges))
	for i, e := range p.Edges {
		weights[i] = Weight(e, layer)
		if enrichment {
			if avg := averages[e.Relation]; avg != 0 {
				weights[i] /= avg
			}
		}
	}
	return stat.Mean(weights, nil)
}

// ScoredPath is the best path found for one node type sequence.
type ScoredPath struct {
	MetaPath string
	Path     Path
	Score    float64
}

// MetaPaths keeps the best scoring path per node type sequence, sorted by
// score.
func MetaPaths(paths []Path, averages map[string]float64, opts Options) []ScoredPath {
	best := make(map[string]ScoredPath)
	for _, p := range paths {
		sp := ScoredPath{MetaPath: p.Types(), Path: p, Score: ScorePath(p, averages, opts.Layer, opts.Enrichment)}
		if cur, ok := best[sp.MetaPath]; !ok || sp.Score > cur.Score {
			best[sp.MetaPath] = sp
		}
	}

	out := make([]ScoredPath, 0, len(best))
	for _, sp := range best {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MetaPath < out[j].MetaPath
	})
	return out
}
