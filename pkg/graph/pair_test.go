package graph

import (
	"context"
	"testing"

	"github.com/txgnn-explorer/backend/pkg/common"
)

func metaIDs(mp common.MetaPath) []string {
	ids := make([]string, len(mp.Nodes))
	for i, n := range mp.Nodes {
		ids[i] = n.NodeID
	}
	return ids
}

func TestAttentionPairJoinsPaths(t *testing.T) {
	t.Parallel()

	kg := fixtureGraph(t)
	pair, err := AttentionPair(context.Background(), kg.Source(), "D1", "R2", PairOptions{})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	if pair.Attention["D1"] == nil || pair.Attention["R2"] == nil {
		t.Fatalf("expected trees for both ends, got %v", pair.Attention)
	}
	if len(pair.Paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(pair.Paths))
	}
	mp := pair.Paths[0]
	if got := metaIDs(mp); !equalIDs(got, []string{"D1", "P1", "R2"}) {
		t.Fatalf("got %v", got)
	}
	if mp.Synthetic {
		t.Fatal("real path flagged synthetic")
	}
	if mp.AvgScore != 0.625 {
		t.Fatalf("got avg %v, want 0.625", mp.AvgScore)
	}
	if mp.Edges[0].EdgeInfo != "protein_disease" || mp.Edges[1].EdgeInfo != "drug_protein" {
		t.Fatalf("got edges %+v", mp.Edges)
	}
}

func TestAttentionPairSyntheticFallback(t *testing.T) {
	t.Parallel()

	kg := fixtureGraph(t)
	pair, err := AttentionPair(context.Background(), kg.Source(), "D2", "R2", PairOptions{})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if _, ok := pair.Attention["D2"]; ok {
		t.Fatal("D2 has no attention paths and should have no tree")
	}
	if len(pair.Paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(pair.Paths))
	}
	mp := pair.Paths[0]
	if !mp.Synthetic || mp.AvgScore != syntheticProteinScore {
		t.Fatalf("got %+v", mp)
	}
	if got := metaIDs(mp); !equalIDs(got, []string{"D2", "P3", "R2"}) {
		t.Fatalf("got %v", got)
	}
}

func TestJoinPathsRejectsCycles(t *testing.T) {
	t.Parallel()

	e := func(rel string) *common.Edge { return &common.Edge{Relation: rel, Layer1Att: 1} }
	ref := func(id string) common.PathNodeRef { return common.PathNodeRef{ID: id, Labels: []string{"x"}} }

	disease := []common.AttentionPath{
		{{Node: ref("d")}, {Node: ref("a"), Rel: e("r")}, {Node: ref("b"), Rel: e("r")}},
	}
	drug := []common.AttentionPath{
		{{Node: ref("m")}, {Node: ref("a"), Rel: e("r")}, {Node: ref("b"), Rel: e("r")}},
	}

	paths := JoinPaths(disease, drug, "d", "m")
	for _, p := range paths {
		seen := map[string]bool{}
		for _, id := range metaIDs(p) {
			if seen[id] {
				t.Fatalf("path %v revisits %s", metaIDs(p), id)
			}
			seen[id] = true
		}
	}
	if len(paths) != 1 || !equalIDs(metaIDs(paths[0]), []string{"d", "a", "m"}) {
		t.Fatalf("got %d paths", len(paths))
	}
}

func TestJoinPathsSortedByScore(t *testing.T) {
	t.Parallel()

	e := func(score float64) *common.Edge { return &common.Edge{Relation: "r", Layer1Att: score} }
	ref := func(id string) common.PathNodeRef { return common.PathNodeRef{ID: id, Labels: []string{"x"}} }

	disease := []common.AttentionPath{
		{{Node: ref("d")}, {Node: ref("weak"), Rel: e(0.1)}},
		{{Node: ref("d")}, {Node: ref("strong"), Rel: e(0.9)}},
	}
	drug := []common.AttentionPath{
		{{Node: ref("m")}, {Node: ref("weak"), Rel: e(0.1)}},
		{{Node: ref("m")}, {Node: ref("strong"), Rel: e(0.9)}},
	}

	paths := JoinPaths(disease, drug, "d", "m")
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2", len(paths))
	}
	if paths[0].Nodes[1].NodeID != "strong" {
		t.Fatalf("got %v first", metaIDs(paths[0]))
	}
}

func TestSyntheticPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		proteins  []string
		targets   []string
		wantMid   []string
		wantScore float64
	}{
		{"no proteins", nil, nil, []string{syntheticNodeID}, syntheticMechanismScore},
		{"shared first", []string{"p1", "p2", "p3", "p4"}, []string{"p4"}, []string{"p4", "p1", "p2"}, syntheticProteinScore},
		{"duplicates removed", []string{"p2", "p2", "p1"}, nil, []string{"p1", "p2"}, syntheticProteinScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			paths := SyntheticPaths("d", "m", tt.proteins, tt.targets)
			if len(paths) != len(tt.wantMid) {
				t.Fatalf("got %d paths, want %d", len(paths), len(tt.wantMid))
			}
			for i, p := range paths {
				if !p.Synthetic || p.AvgScore != tt.wantScore {
					t.Fatalf("got %+v", p)
				}
				if got := metaIDs(p); !equalIDs(got, []string{"d", tt.wantMid[i], "m"}) {
					t.Fatalf("path %d: got %v", i, got)
				}
			}
		})
	}
}
