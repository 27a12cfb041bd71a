package graph

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/txgnn-explorer/backend/pkg/common"
)

const fixtureEdges = `x_id,x_type,x_name,relation,y_id,y_type,y_name,layer1_att,layer2_att
R1,drug,Aspirin,rev_indication,D1,disease,Flu,0.25,0.25
P1,gene/protein,TP53,protein_disease,D1,disease,Flu,0.5,0.25
P2,gene/protein,CYP3A4,protein_disease,D1,disease,Flu,0.125,
D1,disease,Flu,disease_protein,P1,gene/protein,TP53,0.25,0
R2,drug,Ibuprofen,drug_protein,P1,gene/protein,TP53,0.25,0.25
R2,drug,Ibuprofen,drug_protein,P3,gene/protein,EGFR,0.0625,0
D2,disease,Cold,disease_protein,P3,gene/protein,EGFR,0.25,0.25
`

func fixtureGraph(t *testing.T) *KnowledgeGraph {
	t.Helper()
	kg, err := LoadEdges(context.Background(), strings.NewReader(fixtureEdges), LoadOptions{ChunkSize: 3})
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return kg
}

func TestLoadEdges(t *testing.T) {
	t.Parallel()

	kg := fixtureGraph(t)
	if got := kg.NodeCount(); got != 7 {
		t.Fatalf("got %d nodes, want 7", got)
	}
	if got := kg.EdgeCount(); got != 7 {
		t.Fatalf("got %d edges, want 7", got)
	}
	if got := kg.NodeType("P2"); got != common.NodeTypeGeneProtein {
		t.Fatalf("got type %q, want gene/protein", got)
	}
	if got := kg.NodeType("missing"); got != common.NodeTypeUnknown {
		t.Fatalf("got type %q, want unknown", got)
	}

	in := kg.InEdges("D1")
	if len(in) != 3 {
		t.Fatalf("got %d in-edges of D1, want 3", len(in))
	}
	for _, e := range in {
		if e.Source == "P2" && e.Score() != 0.125 {
			t.Fatalf("empty layer2 should read as 0, got score %v", e.Score())
		}
	}
	if got := len(kg.OutEdges("R2")); got != 2 {
		t.Fatalf("got %d out-edges of R2, want 2", got)
	}
}

func TestLoadEdgesExclude(t *testing.T) {
	t.Parallel()

	kg, err := LoadEdges(context.Background(), strings.NewReader(fixtureEdges), LoadOptions{
		Exclude: func(n common.Node) bool { return strings.HasPrefix(n.Name, "CYP") },
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if kg.HasNode("P2") {
		t.Fatal("excluded node should not be in the graph")
	}
	if got := kg.EdgeCount(); got != 6 {
		t.Fatalf("got %d edges, want 6", got)
	}
}

func TestLoadEdgesMissingColumns(t *testing.T) {
	t.Parallel()

	_, err := LoadEdges(context.Background(), strings.NewReader("x_id,y_id\nA,B\n"), LoadOptions{})
	if err == nil {
		t.Fatal("expected an error for missing columns")
	}
}

func TestAddNodeFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	kg := NewKnowledgeGraph()
	kg.AddEdge(common.Edge{Source: "a", Target: "b", Relation: "r"})
	kg.AddNode("a", common.NodeTypeDrug, "late")
	if got := kg.NodeType("a"); got != common.NodeTypeUnknown {
		t.Fatalf("got %q, want unknown", got)
	}

	kg.AddNode("c", common.NodeTypeDrug, "first")
	kg.AddNode("c", common.NodeTypeDisease, "second")
	n, _ := kg.Node("c")
	if n.Type != common.NodeTypeDrug || n.Name != "first" {
		t.Fatalf("got %+v", n)
	}
}

func TestParallelEdges(t *testing.T) {
	t.Parallel()

	kg := NewKnowledgeGraph()
	kg.AddEdge(common.Edge{Source: "a", Target: "b", Relation: "r1", Layer1Att: 1})
	kg.AddEdge(common.Edge{Source: "a", Target: "b", Relation: "r2", Layer1Att: 2})

	if got := len(kg.OutEdges("a")); got != 2 {
		t.Fatalf("got %d parallel edges, want 2", got)
	}
	if got := len(kg.EdgesOfType("r2")); got != 1 {
		t.Fatalf("got %d r2 edges, want 1", got)
	}
	if got := kg.Relations(); len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Fatalf("got relations %v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	kg := fixtureGraph(t)
	var buf bytes.Buffer
	if err := kg.SaveSnapshot(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, err := LoadSnapshot(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.NodeCount() != kg.NodeCount() || back.EdgeCount() != kg.EdgeCount() {
		t.Fatalf("got %d/%d, want %d/%d", back.NodeCount(), back.EdgeCount(), kg.NodeCount(), kg.EdgeCount())
	}
	n, ok := back.Node("R2")
	if !ok || n.Name != "Ibuprofen" || n.Type != common.NodeTypeDrug {
		t.Fatalf("got %+v", n)
	}
	if got := len(back.InEdges("D1")); got != 3 {
		t.Fatalf("got %d in-edges, want 3", got)
	}
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := LoadSnapshot(strings.NewReader("not a snapshot")); err == nil {
		t.Fatal("expected an error")
	}
}
