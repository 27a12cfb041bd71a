package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/logger"
)

// DefaultPairPathLimit bounds the meta paths returned for a disease/drug pair.
const DefaultPairPathLimit = 50

const (
	syntheticProteinScore   = 0.7
	syntheticMechanismScore = 0.5
	maxSyntheticPaths       = 3
	syntheticNodeID         = "synthetic_node"
)

// PairOptions configures AttentionPair.
type PairOptions struct {
	AttentionOptions
	PathLimit int
}

// AttentionPair explains a predicted disease/drug pair: the attention tree
// of both ends plus the meta paths connecting them. When the two attention
// neighbourhoods share no node, synthetic placeholder paths are returned.
func AttentionPair(ctx context.Context, src EdgeSource, diseaseID, drugID string, opts PairOptions) (*common.AttentionPair, error) {
	diseasePaths, err := Attention(ctx, src, diseaseID, common.NodeTypeDisease, opts.AttentionOptions)
	if err != nil {
		return nil, err
	}
	drugPaths, err := Attention(ctx, src, drugID, common.NodeTypeDrug, opts.AttentionOptions)
	if err != nil {
		return nil, err
	}

	attention := make(map[string]*common.AttentionTree, 2)
	if tree := BuildTree(diseasePaths, common.NodeTypeDisease, diseaseID); tree != nil {
		attention[diseaseID] = tree
	}
	if tree := BuildTree(drugPaths, common.NodeTypeDrug, drugID); tree != nil {
		attention[drugID] = tree
	}

	limit := opts.PathLimit
	if limit <= 0 {
		limit = DefaultPairPathLimit
	}
	paths := JoinPaths(diseasePaths, drugPaths, diseaseID, drugID)
	if len(paths) > limit {
		paths = paths[:limit]
	}

	if len(paths) == 0 {
		logger.Debug("No real paths between disease and drug, generating synthetic paths",
			"disease", diseaseID, "drug", drugID)
		proteins, err := neighboursVia(ctx, src, diseaseID, common.RelationDiseaseProtein)
		if err != nil {
			return nil, err
		}
		targets, err := neighboursVia(ctx, src, drugID, common.RelationDrugProtein)
		if err != nil {
			return nil, err
		}
		paths = SyntheticPaths(diseaseID, drugID, proteins, targets)
	}

	return &common.AttentionPair{Attention: attention, Paths: paths}, nil
}

type sideHit struct {
	path  common.AttentionPath
	depth int
}

// JoinPaths connects disease rooted and drug rooted attention paths through
// the nodes they share. A drug reached directly from the disease side (or
// the disease from the drug side) forms a path on its own. Paths never
// revisit a node, are deduplicated by node sequence and sorted by mean edge
// score.
func JoinPaths(diseasePaths, drugPaths []common.AttentionPath, diseaseID, drugID string) []common.MetaPath {
	drugSide := make(map[string]sideHit)
	for _, p := range drugPaths {
		for j := 1; j < len(p); j++ {
			if _, ok := drugSide[p[j].Node.ID]; !ok {
				drugSide[p[j].Node.ID] = sideHit{path: p, depth: j}
			}
		}
	}

	seen := make(map[string]struct{})
	var out []common.MetaPath
	add := func(steps []common.PathStep, edges []*common.Edge) {
		mp, key, ok := toMetaPath(steps, edges)
		if !ok {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, mp)
	}

	for _, d := range diseasePaths {
		for i := 1; i < len(d); i++ {
			x := d[i].Node.ID
			if x == drugID {
				add(d[:i+1], relsOf(d[1:i+1]))
				break
			}
			hit, ok := drugSide[x]
			if !ok {
				continue
			}
			steps := append([]common.PathStep{}, d[:i+1]...)
			edges := relsOf(d[1 : i+1])
			for m := hit.depth - 1; m >= 0; m-- {
				steps = append(steps, hit.path[m])
				edges = append(edges, hit.path[m+1].Rel)
			}
			add(steps, edges)
		}
	}

	for _, r := range drugPaths {
		for j := 1; j < len(r); j++ {
			if r[j].Node.ID != diseaseID {
				continue
			}
			steps := make([]common.PathStep, 0, j+1)
			edges := make([]*common.Edge, 0, j)
			for m := j; m >= 0; m-- {
				steps = append(steps, r[m])
				if m > 0 {
					edges = append(edges, r[m].Rel)
				}
			}
			add(steps, edges)
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return pathKey(out[i]) < pathKey(out[j])
	})
	return out
}

func relsOf(steps []common.PathStep) []*common.Edge {
	out := make([]*common.Edge, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Rel)
	}
	return out
}

func toMetaPath(steps []common.PathStep, edges []*common.Edge) (common.MetaPath, string, bool) {
	if len(steps) < 2 || len(edges) != len(steps)-1 {
		return common.MetaPath{}, "", false
	}
	visited := make(map[string]struct{}, len(steps))
	mp := common.MetaPath{
		Nodes: make([]common.PathNode, 0, len(steps)),
		Edges: make([]common.PathEdge, 0, len(edges)),
	}
	for _, s := range steps {
		if _, ok := visited[s.Node.ID]; ok {
			return common.MetaPath{}, "", false
		}
		visited[s.Node.ID] = struct{}{}
		mp.Nodes = append(mp.Nodes, common.PathNode{NodeID: s.Node.ID, NodeType: firstLabel(s.Node.Labels)})
	}
	total := 0.0
	for _, e := range edges {
		if e == nil {
			return common.MetaPath{}, "", false
		}
		mp.Edges = append(mp.Edges, common.PathEdge{EdgeInfo: e.Relation, Score: e.Score()})
		total += e.Score()
	}
	mp.AvgScore = total / float64(len(edges))
	return mp, pathKey(mp), true
}

func pathKey(mp common.MetaPath) string {
	ids := make([]string, len(mp.Nodes))
	for i, n := range mp.Nodes {
		ids[i] = n.NodeID
	}
	return strings.Join(ids, "\x1f")
}

// SyntheticPaths builds placeholder explanations for a pair without a real
// connection: up to three disease -> protein -> drug paths, proteins also
// targeted by the drug first. Without any disease protein a single path
// through a synthetic pathway node is returned.
func SyntheticPaths(diseaseID, drugID string, diseaseProteins, drugTargets []string) []common.MetaPath {
	targeted := make(map[string]struct{}, len(drugTargets))
	for _, t := range drugTargets {
		targeted[t] = struct{}{}
	}

	ordered := uniqueSorted(diseaseProteins)
	sort.SliceStable(ordered, func(i, j int) bool {
		_, ti := targeted[ordered[i]]
		_, tj := targeted[ordered[j]]
		return ti && !tj
	})

	var out []common.MetaPath
	for _, protein := range ordered {
		out = append(out, common.MetaPath{
			Nodes: []common.PathNode{
				{NodeID: diseaseID, NodeType: common.NodeTypeDisease},
				{NodeID: protein, NodeType: common.NodeTypeGeneProtein},
				{NodeID: drugID, NodeType: common.NodeTypeDrug},
			},
			Edges: []common.PathEdge{
				{EdgeInfo: common.RelationDiseaseProtein, Score: syntheticProteinScore},
				{EdgeInfo: common.RelationDrugProtein, Score: syntheticProteinScore},
			},
			AvgScore:  syntheticProteinScore,
			Synthetic: true,
		})
		if len(out) >= maxSyntheticPaths {
			break
		}
	}

	if len(out) == 0 {
		out = append(out, common.MetaPath{
			Nodes: []common.PathNode{
				{NodeID: diseaseID, NodeType: common.NodeTypeDisease},
				{NodeID: syntheticNodeID, NodeType: common.NodeTypePathway},
				{NodeID: drugID, NodeType: common.NodeTypeDrug},
			},
			Edges: []common.PathEdge{
				{EdgeInfo: "potential_mechanism", Score: syntheticMechanismScore},
				{EdgeInfo: "potential_modulation", Score: syntheticMechanismScore},
			},
			AvgScore:  syntheticMechanismScore,
			Synthetic: true,
		})
	}
	return out
}

// neighboursVia lists gene/protein nodes reached from id over relation.
func neighboursVia(ctx context.Context, src EdgeSource, id, relation string) ([]string, error) {
	edges, err := src.OutEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range edges {
		if e.Relation != relation {
			continue
		}
		t, ok, err := src.NodeType(ctx, e.Target)
		if err != nil {
			return nil, err
		}
		if ok && t == common.NodeTypeGeneProtein {
			out = append(out, e.Target)
		}
	}
	return uniqueSorted(out), nil
}

func uniqueSorted(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
