package graph

import (
	"context"

	"github.com/txgnn-explorer/backend/pkg/common"
)

// EdgeSource is the neighbourhood access the attention queries need.
// The in-memory graph and the Neo4j store both provide it.
type EdgeSource interface {
	NodeType(ctx context.Context, id string) (string, bool, error)
	InEdges(ctx context.Context, id string) ([]common.Edge, error)
	OutEdges(ctx context.Context, id string) ([]common.Edge, error)
}

type localSource struct {
	kg *KnowledgeGraph
}

// Source exposes kg as an EdgeSource.
func (kg *KnowledgeGraph) Source() EdgeSource {
	return localSource{kg: kg}
}

func (s localSource) NodeType(_ context.Context, id string) (string, bool, error) {
	if !s.kg.HasNode(id) {
		return "", false, nil
	}
	return s.kg.NodeType(id), true, nil
}

func (s localSource) InEdges(_ context.Context, id string) ([]common.Edge, error) {
	return s.kg.InEdges(id), nil
}

func (s localSource) OutEdges(_ context.Context, id string) ([]common.Edge, error) {
	return s.kg.OutEdges(id), nil
}
