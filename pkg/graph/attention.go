package graph

import (
	"context"
	"sort"

	"github.com/txgnn-explorer/backend/pkg/common"
)

const (
	// DefaultRootK bounds the hop-1 neighbours kept per relation.
	DefaultRootK = 5
	// DefaultHopK bounds the hop-2 neighbours kept per hop-1 neighbour.
	DefaultHopK = 5
)

// AttentionOptions sets the fan-out of attention queries.
type AttentionOptions struct {
	RootK int
	HopK  int
}

func (o AttentionOptions) withDefaults() AttentionOptions {
	if o.RootK <= 0 {
		o.RootK = DefaultRootK
	}
	if o.HopK <= 0 {
		o.HopK = DefaultHopK
	}
	return o
}

// Attention collects the attention paths rooted at id.
//
// Diseases are explained by what points at them, so for a disease root the
// walk follows incoming edges; every other root follows outgoing edges. For
// each relation touching the root the RootK strongest neighbours (layer1 +
// layer2) are kept, and for each of them the HopK strongest next hops by
// layer1 attention. Next hops may lead back to the root; BuildTree keeps the
// root out of the tree. A neighbour without further hops yields a two step path.
// An id missing from the graph yields no paths.
func Attention(ctx context.Context, src EdgeSource, id, nodeType string, opts AttentionOptions) ([]common.AttentionPath, error) {
	opts = opts.withDefaults()

	rootType, ok, err := src.NodeType(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	if nodeType == "" {
		nodeType = rootType
	}
	incoming := nodeType == common.NodeTypeDisease

	in, err := src.InEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := src.OutEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	relations := distinctRelations(in, out)
	first := out
	if incoming {
		first = in
	}

	root := common.PathStep{Node: common.PathNodeRef{ID: id, Labels: []string{rootType}}}
	types := map[string]string{id: rootType}
	hops := make(map[string][]common.Edge)

	var paths []common.AttentionPath
	for _, rel := range relations {
		neighbours := filterRelation(first, rel)
		rankEdges(neighbours, incoming, common.Edge.Score)
		neighbours = head(neighbours, opts.RootK)

		for i := range neighbours {
			hop1 := neighbours[i]
			hop1ID := far(hop1, incoming)

			second, ok := hops[hop1ID]
			if !ok {
				second, err = walk(ctx, src, hop1ID, incoming)
				if err != nil {
					return nil, err
				}
				rankEdges(second, incoming, func(e common.Edge) float64 { return e.Layer1Att })
				second = head(second, opts.HopK)
				hops[hop1ID] = second
			}

			hop1Step, err := step(ctx, src, types, hop1ID, hop1)
			if err != nil {
				return nil, err
			}
			// A neighbour without next hops is kept as a two step path.
			// Earlier explorer releases dropped it, so their output differs here.
			if len(second) == 0 {
				paths = append(paths, common.AttentionPath{root, hop1Step})
				continue
			}
			for j := range second {
				hop2ID := far(second[j], incoming)
				hop2Step, err := step(ctx, src, types, hop2ID, second[j])
				if err != nil {
					return nil, err
				}
				paths = append(paths, common.AttentionPath{root, hop1Step, hop2Step})
			}
		}
	}

	return paths, nil
}

// BuildTree folds attention paths into a tree rooted at id. Every node is
// placed once, under the parent of its first occurrence; children are
// ordered by score. No paths yields nil.
func BuildTree(paths []common.AttentionPath, nodeType, id string) *common.AttentionTree {
	if len(paths) == 0 {
		return nil
	}

	root := &common.AttentionTree{
		NodeID:   id,
		NodeType: nodeType,
		Score:    1.0,
		Children: []*common.AttentionTree{},
	}
	placed := map[string]*common.AttentionTree{id: root}

	for _, path := range paths {
		parent := root
		for depth := 1; depth < len(path); depth++ {
			current := path[depth]
			if existing, ok := placed[current.Node.ID]; ok {
				parent = existing
				continue
			}

			child := &common.AttentionTree{
				NodeID:   current.Node.ID,
				NodeType: firstLabel(current.Node.Labels),
				Score:    1.0,
				Children: []*common.AttentionTree{},
			}
			if current.Rel != nil {
				child.Score = current.Rel.Score()
				child.EdgeInfo = current.Rel.Relation
			}
			parent.Children = append(parent.Children, child)
			placed[child.NodeID] = child
			parent = child
		}
	}

	sortTree(root)
	return root
}

func sortTree(node *common.AttentionTree) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.NodeID < b.NodeID
	})
	for _, c := range node.Children {
		sortTree(c)
	}
}

func firstLabel(labels []string) string {
	if len(labels) == 0 || labels[0] == "" {
		return common.NodeTypeUnknown
	}
	return labels[0]
}

func walk(ctx context.Context, src EdgeSource, id string, incoming bool) ([]common.Edge, error) {
	if incoming {
		return src.InEdges(ctx, id)
	}
	return src.OutEdges(ctx, id)
}

func step(ctx context.Context, src EdgeSource, types map[string]string, id string, e common.Edge) (common.PathStep, error) {
	t, ok := types[id]
	if !ok {
		nodeType, found, err := src.NodeType(ctx, id)
		if err != nil {
			return common.PathStep{}, err
		}
		t = common.NodeTypeUnknown
		if found && nodeType != "" {
			t = nodeType
		}
		types[id] = t
	}
	rel := e
	return common.PathStep{
		Node: common.PathNodeRef{ID: id, Labels: []string{t}},
		Rel:  &rel,
	}, nil
}

// far returns the endpoint reached by following e in the walk direction.
func far(e common.Edge, incoming bool) string {
	if incoming {
		return e.Source
	}
	return e.Target
}

func distinctRelations(lists ...[]common.Edge) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, e := range list {
			if e.Relation == "" {
				continue
			}
			if _, ok := seen[e.Relation]; ok {
				continue
			}
			seen[e.Relation] = struct{}{}
			out = append(out, e.Relation)
		}
	}
	sort.Strings(out)
	return out
}

func filterRelation(edges []common.Edge, rel string) []common.Edge {
	var out []common.Edge
	for _, e := range edges {
		if e.Relation == rel {
			out = append(out, e)
		}
	}
	return out
}

// rankEdges sorts by score descending; ties fall back to the far endpoint
// id so results do not depend on map iteration order.
func rankEdges(edges []common.Edge, incoming bool, score func(common.Edge) float64) {
	sort.SliceStable(edges, func(i, j int) bool {
		si, sj := score(edges[i]), score(edges[j])
		if si != sj {
			return si > sj
		}
		fi, fj := far(edges[i], incoming), far(edges[j], incoming)
		if fi != fj {
			return fi < fj
		}
		return edges[i].Relation < edges[j].Relation
	})
}

func head(edges []common.Edge, n int) []common.Edge {
	if n > 0 && len(edges) > n {
		return edges[:n]
	}
	return edges
}
