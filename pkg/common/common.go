package common

import (
	"encoding/json"
	"fmt"
)

// Node types present in the TxGNN knowledge graph.
const (
	NodeTypeAnatomy           = "anatomy"
	NodeTypeBiologicalProcess = "biological_process"
	NodeTypeCellularComponent = "cellular_component"
	NodeTypeDisease           = "disease"
	NodeTypeDrug              = "drug"
	NodeTypePhenotype         = "effect/phenotype"
	NodeTypeExposure          = "exposure"
	NodeTypeGeneProtein       = "gene/protein"
	NodeTypeMolecularFunction = "molecular_function"
	NodeTypePathway           = "pathway"

	NodeTypeUnknown = "unknown"
)

// Relations with special meaning to the query layer.
const (
	RelationRevIndication  = "rev_indication"
	RelationDiseaseProtein = "disease_protein"
	RelationDrugProtein    = "drug_protein"
)

// Node is a vertex of the knowledge graph. ID is the TxGNN node id
// (e.g. a MONDO grouped id for diseases, a DrugBank id for drugs).
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Edge is a directed relation between two nodes carrying the per-layer
// attention weights produced by the explainer.
type Edge struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Relation  string  `json:"type"`
	Layer1Att float64 `json:"layer1_att"`
	Layer2Att float64 `json:"layer2_att"`
}

// Score is the combined attention of both layers.
func (e Edge) Score() float64 {
	return e.Layer1Att + e.Layer2Att
}

// MarshalJSON keeps the edge_info field that the frontend reads next to type.
func (e Edge) MarshalJSON() ([]byte, error) {
	type plain Edge
	return json.Marshal(struct {
		plain
		EdgeInfo string `json:"edge_info"`
	}{plain(e), e.Relation})
}

// DiseaseStatus tells whether a disease has at least one known treatment.
// It is serialised as a two element array: [id, treatable].
type DiseaseStatus struct {
	ID        string
	Treatable bool
}

func (d DiseaseStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.ID, d.Treatable})
}

func (d *DiseaseStatus) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("disease status: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &d.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &d.Treatable)
}

// DrugPrediction is one ranked drug for a disease.
type DrugPrediction struct {
	Score float64 `json:"score"`
	ID    string  `json:"id"`
	Known bool    `json:"known"`
}

// PathNodeRef is the node part of an attention path step.
type PathNodeRef struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

// PathStep is one hop of an attention path. Rel is nil for the root step,
// which serialises as the string "none".
type PathStep struct {
	Node PathNodeRef `json:"node"`
	Rel  *Edge       `json:"rel"`
}

func (s PathStep) MarshalJSON() ([]byte, error) {
	var rel any = "none"
	if s.Rel != nil {
		rel = s.Rel
	}
	return json.Marshal(struct {
		Node PathNodeRef `json:"node"`
		Rel  any         `json:"rel"`
	}{s.Node, rel})
}

// AttentionPath is a root-first chain of steps.
type AttentionPath []PathStep

// AttentionTree is the explanation tree rendered by the frontend.
type AttentionTree struct {
	NodeID   string           `json:"nodeId"`
	NodeType string           `json:"nodeType"`
	Score    float64          `json:"score"`
	EdgeInfo string           `json:"edgeInfo"`
	Children []*AttentionTree `json:"children"`
}

// PathNode is a node on a disease-to-drug meta path.
type PathNode struct {
	NodeID   string `json:"nodeId"`
	NodeType string `json:"nodeType"`
}

// PathEdge is an edge on a disease-to-drug meta path.
type PathEdge struct {
	EdgeInfo string  `json:"edgeInfo"`
	Score    float64 `json:"score"`
}

// MetaPath connects a disease to a drug. Synthetic paths are placeholders
// produced when the graph holds no real connection between the two.
type MetaPath struct {
	Nodes     []PathNode `json:"nodes"`
	Edges     []PathEdge `json:"edges"`
	AvgScore  float64    `json:"avg_score"`
	Synthetic bool       `json:"synthetic,omitempty"`
}

// AttentionPair is the answer of a disease/drug explanation query.
// Attention maps the disease id and drug id to their trees.
type AttentionPair struct {
	Attention map[string]*AttentionTree `json:"attention"`
	Paths     []MetaPath                `json:"paths"`
}

// GraphStats summarises what a graph database has loaded.
type GraphStats struct {
	Nodes       int `json:"nodes"`
	Edges       int `json:"edges"`
	Diseases    int `json:"diseases_with_predictions"`
	Indications int `json:"indications"`
}
