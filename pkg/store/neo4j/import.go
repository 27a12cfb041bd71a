package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/store"
)

// DefaultImportBatch is the number of rows sent per UNWIND statement.
const DefaultImportBatch = 1000

const (
	constraintQuery  = `CREATE CONSTRAINT node_id IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE`
	importNodesQuery = `UNWIND $rows AS row
MERGE (n:Node {id: row.id})
ON CREATE SET n.type = row.type, n.name = row.name`
	importEdgesQuery = `UNWIND $rows AS row
MATCH (s:Node {id: row.source})
MATCH (t:Node {id: row.target})
CREATE (s)-[:ATTENTION {relation: row.relation, layer1_att: row.layer1_att, layer2_att: row.layer2_att}]->(t)`
)

// EnsureSchema creates the node id constraint used by every lookup.
func (db *Neo4jGraphDatabase) EnsureSchema(ctx context.Context) error {
	if err := db.write(ctx, constraintQuery, nil); err != nil {
		return fmt.Errorf("create node constraint: %w", err)
	}
	return nil
}

// Import writes every node and edge of kg. Nodes are merged by id, so
// importing twice does not duplicate them; edges are always created.
func (db *Neo4jGraphDatabase) Import(ctx context.Context, kg *graph.KnowledgeGraph, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultImportBatch
	}
	start := time.Now()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	nodes := nodeRows(kg)
	err := store.ChunkRange(len(nodes), batchSize, func(from, to int) error {
		if err := db.write(ctx, importNodesQuery, map[string]any{"rows": nodes[from:to]}); err != nil {
			return fmt.Errorf("import nodes %d-%d: %w", from, to, err)
		}
		logger.Debug("Imported node batch", "from", from, "to", to, "total", len(nodes))
		return nil
	})
	if err != nil {
		return err
	}

	edges := edgeRows(kg)
	err = store.ChunkRange(len(edges), batchSize, func(from, to int) error {
		if err := db.write(ctx, importEdgesQuery, map[string]any{"rows": edges[from:to]}); err != nil {
			return fmt.Errorf("import edges %d-%d: %w", from, to, err)
		}
		logger.Debug("Imported edge batch", "from", from, "to", to, "total", len(edges))
		return nil
	})
	if err != nil {
		return err
	}

	logger.Duration("Imported knowledge graph into Neo4j", start, "nodes", len(nodes), "edges", len(edges))
	return nil
}

// nodeRows exports every node whatever its type; an empty type is stored as
// "unknown" to match KnowledgeGraph.NodeType.
func nodeRows(kg *graph.KnowledgeGraph) []any {
	nodes := kg.Nodes()
	rows := make([]any, 0, len(nodes))
	for _, n := range nodes {
		t := n.Type
		if t == "" {
			t = common.NodeTypeUnknown
		}
		rows = append(rows, map[string]any{"id": n.ID, "type": t, "name": n.Name})
	}
	return rows
}

func edgeRows(kg *graph.KnowledgeGraph) []any {
	rows := make([]any, 0, kg.EdgeCount())
	kg.ForEachEdge(func(e common.Edge) {
		rows = append(rows, map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"relation":   e.Relation,
			"layer1_att": e.Layer1Att,
			"layer2_att": e.Layer2Att,
		})
	})
	return rows
}
