package store

import (
	"context"
	"errors"

	"github.com/txgnn-explorer/backend/pkg/common"
)

var (
	// ErrNodeNotFound is returned when a queried node is not in the graph.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEmptyID is returned when a query is made without a node id.
	ErrEmptyID = errors.New("empty node id")
)

// GraphDatabase defines the read-only queries the explorer runs against a
// precomputed TxGNN knowledge graph. The file backed implementation keeps
// everything in memory; the Neo4j implementation pushes neighbourhood
// lookups to the database and keeps the prediction table in memory.
type GraphDatabase interface {
	// QueryDiseases lists every disease and whether it has a known treatment.
	QueryDiseases(ctx context.Context) ([]common.DiseaseStatus, error)
	// QueryPredictedDrugs returns the n best drugs predicted for a disease.
	QueryPredictedDrugs(ctx context.Context, diseaseID string, n int) ([]common.DrugPrediction, error)
	// QueryAttention returns the attention paths rooted at a node. It fails
	// with ErrNodeNotFound when the node is absent.
	QueryAttention(ctx context.Context, id, nodeType string) ([]common.AttentionPath, error)
	// QueryAttentionPair explains a disease/drug prediction.
	QueryAttentionPair(ctx context.Context, diseaseID, drugID string) (*common.AttentionPair, error)
	Stats(ctx context.Context) (common.GraphStats, error)
	Close(ctx context.Context) error
}
