package graph

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/txgnn-explorer/backend/pkg/common"
	csvloader "github.com/txgnn-explorer/backend/pkg/loader/csv"
	"github.com/txgnn-explorer/backend/pkg/logger"
)

// EdgeChunkSize is the number of CSV rows parsed between progress reports.
const EdgeChunkSize = 100000

var edgeColumns = []string{"x_id", "x_type", "relation", "y_id", "y_type"}

// LoadOptions tunes LoadEdges.
type LoadOptions struct {
	ChunkSize int
	// Exclude drops a row when it returns true for either endpoint.
	Exclude func(n common.Node) bool
}

// LoadEdges streams the attention edge table into a new graph. Rows without
// both endpoint ids are skipped.
func LoadEdges(ctx context.Context, r io.Reader, opts LoadOptions) (*KnowledgeGraph, error) {
	start := time.Now()
	size := opts.ChunkSize
	if size <= 0 {
		size = EdgeChunkSize
	}

	cr, err := csvloader.NewReader(r)
	if err != nil {
		return nil, err
	}
	if err := cr.Require(edgeColumns...); err != nil {
		return nil, err
	}

	kg := NewKnowledgeGraph()
	rows, chunks, excluded := 0, 0, 0
	err = cr.Chunks(size, func(chunk []csvloader.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, rec := range chunk {
			x := common.Node{ID: rec.Get("x_id"), Type: rec.Get("x_type"), Name: rec.Get("x_name")}
			y := common.Node{ID: rec.Get("y_id"), Type: rec.Get("y_type"), Name: rec.Get("y_name")}
			if x.ID == "" || y.ID == "" {
				continue
			}
			if opts.Exclude != nil && (opts.Exclude(x) || opts.Exclude(y)) {
				excluded++
				continue
			}
			kg.AddNode(x.ID, x.Type, x.Name)
			kg.AddNode(y.ID, y.Type, y.Name)
			kg.AddEdge(common.Edge{
				Source:    x.ID,
				Target:    y.ID,
				Relation:  rec.Get("relation"),
				Layer1Att: rec.Float("layer1_att"),
				Layer2Att: rec.Float("layer2_att"),
			})
		}
		rows += len(chunk)
		chunks++
		logger.Debug("Processed edge chunk", "chunk", chunks, "rows", rows)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}

	logger.Duration("Loaded knowledge graph", start,
		"nodes", kg.NodeCount(), "edges", kg.EdgeCount(), "excluded", excluded, "malformed", cr.Skipped)
	return kg, nil
}

type snapshotEdge struct {
	From, To int64
	Relation string
	Layer1   float64
	Layer2   float64
}

type snapshot struct {
	Version int
	Nodes   []common.Node
	Edges   []snapshotEdge
}

const snapshotVersion = 1

// SaveSnapshot writes kg in a form LoadSnapshot restores without parsing the
// CSV again.
func (kg *KnowledgeGraph) SaveSnapshot(w io.Writer) error {
	snap := snapshot{
		Version: snapshotVersion,
		Nodes:   kg.nodes,
		Edges:   make([]snapshotEdge, 0, kg.lines),
	}
	kg.ForEachEdge(func(e common.Edge) {
		snap.Edges = append(snap.Edges, snapshotEdge{
			From:     kg.ids[e.Source],
			To:       kg.ids[e.Target],
			Relation: e.Relation,
			Layer1:   e.Layer1Att,
			Layer2:   e.Layer2Att,
		})
	})
	if err := gob.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores a graph written by SaveSnapshot.
func LoadSnapshot(r io.Reader) (*KnowledgeGraph, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	kg := NewKnowledgeGraph()
	for _, n := range snap.Nodes {
		kg.AddNode(n.ID, n.Type, n.Name)
	}
	for _, e := range snap.Edges {
		if e.From < 0 || e.To < 0 || e.From >= int64(len(kg.nodes)) || e.To >= int64(len(kg.nodes)) {
			return nil, fmt.Errorf("snapshot edge references unknown node")
		}
		kg.AddEdge(common.Edge{
			Source:    kg.nodes[e.From].ID,
			Target:    kg.nodes[e.To].ID,
			Relation:  e.Relation,
			Layer1Att: e.Layer1,
			Layer2Att: e.Layer2,
		})
	}
	return kg, nil
}
