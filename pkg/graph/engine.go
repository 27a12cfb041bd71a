package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/loader"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Settings are the query knobs of an Engine. Zero values select defaults.
type Settings struct {
	RootK           int
	HopK            int
	PredictionLimit int
	PathLimit       int
}

func (s Settings) attention() AttentionOptions {
	return AttentionOptions{RootK: s.RootK, HopK: s.HopK}.withDefaults()
}

// DataFiles locates the artifacts an Engine is built from. Snapshot may be
// left zero to always parse the edge table.
type DataFiles struct {
	Edges       loader.DataFile
	Snapshot    loader.DataFile
	Predictions loader.DataFile
	Indications loader.DataFile
}

// Engine answers every query of the explorer from memory.
type Engine struct {
	graph       *KnowledgeGraph
	predictions *Predictions
	indications Indications
	settings    Settings
}

func NewEngine(kg *KnowledgeGraph, predictions *Predictions, indications Indications, settings Settings) *Engine {
	if kg == nil {
		kg = NewKnowledgeGraph()
	}
	if predictions == nil {
		predictions = NewPredictions()
	}
	predictions.Seal()
	if indications == nil {
		indications = Indications{}
	}
	return &Engine{
		graph:       kg,
		predictions: predictions,
		indications: indications,
		settings:    settings,
	}
}

// LoadEngine reads the graph, predictions and indication subset in
// parallel. Only a missing graph is fatal; the other artifacts are treated
// as empty when they cannot be read.
func LoadEngine(ctx context.Context, files DataFiles, settings Settings) (*Engine, error) {
	return LoadEngineWithOptions(ctx, files, settings, LoadOptions{})
}

// LoadEngineWithOptions is LoadEngine with control over how the edge table
// is parsed.
func LoadEngineWithOptions(ctx context.Context, files DataFiles, settings Settings, opts LoadOptions) (*Engine, error) {
	start := time.Now()

	var (
		kg          *KnowledgeGraph
		predictions *Predictions
		indications Indications
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kg, err = LoadGraph(gctx, files.Edges, files.Snapshot, opts)
		return err
	})
	g.Go(func() error {
		predictions = loadOptional(gctx, files.Predictions, "predictions", LoadPredictions)
		return nil
	})
	g.Go(func() error {
		indications = loadOptional(gctx, files.Indications, "indications", func(r io.Reader) (Indications, error) {
			return LoadIndications(r, files.Indications.Kind)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e := NewEngine(kg, predictions, indications, settings)
	logger.Duration("Graph database ready", start,
		"nodes", kg.NodeCount(), "edges", kg.EdgeCount(),
		"diseases_with_predictions", e.predictions.Len(), "indications", len(e.indications))
	return e, nil
}

// LoadTables reads only the prediction table and the indication subset, for
// backends that keep the graph elsewhere.
func LoadTables(ctx context.Context, files DataFiles) (*Predictions, Indications) {
	var (
		predictions *Predictions
		indications Indications
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		predictions = loadOptional(gctx, files.Predictions, "predictions", LoadPredictions)
		return nil
	})
	g.Go(func() error {
		indications = loadOptional(gctx, files.Indications, "indications", func(r io.Reader) (Indications, error) {
			return LoadIndications(r, files.Indications.Kind)
		})
		return nil
	})
	_ = g.Wait()
	return predictions, indications
}

func loadOptional[T any](ctx context.Context, file loader.DataFile, what string, parse func(r io.Reader) (T, error)) T {
	var zero T
	if file.Loader == nil {
		return zero
	}
	start := time.Now()
	data, err := file.ReadAll(ctx)
	if err != nil {
		logger.Warn("Could not read "+what+", continuing without", "file", file.Path, "error", err)
		return zero
	}
	v, err := parse(bytes.NewReader(data))
	if err != nil {
		logger.Warn("Could not parse "+what+", continuing without", "file", file.Path, "error", err)
		return zero
	}
	logger.Duration("Loaded "+what, start, "file", file.Path)
	return v
}

// LoadGraph restores the graph from snapshot when it exists, otherwise
// parses edges and writes the snapshot for the next start. Snapshots are
// skipped when opts.Exclude is set since they hold the full graph.
func LoadGraph(ctx context.Context, edges, snapshot loader.DataFile, opts LoadOptions) (*KnowledgeGraph, error) {
	useSnapshot := snapshot.Loader != nil && opts.Exclude == nil

	if useSnapshot && snapshot.Exists(ctx) {
		start := time.Now()
		kg, err := readSnapshot(ctx, snapshot)
		if err == nil {
			logger.Duration("Loaded graph snapshot", start, "file", snapshot.Path)
			return kg, nil
		}
		logger.Warn("Ignoring unreadable graph snapshot", "file", snapshot.Path, "error", err)
	}

	if edges.Loader == nil {
		return nil, fmt.Errorf("no edge table configured")
	}
	rc, err := edges.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open edge table: %w", err)
	}
	defer rc.Close()

	kg, err := LoadEdges(ctx, rc, opts)
	if err != nil {
		return nil, err
	}

	if useSnapshot {
		if err := writeSnapshot(ctx, snapshot, kg); err != nil {
			logger.Warn("Could not write graph snapshot", "file", snapshot.Path, "error", err)
		}
	}
	return kg, nil
}

func readSnapshot(ctx context.Context, file loader.DataFile) (*KnowledgeGraph, error) {
	rc, err := file.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadSnapshot(rc)
}

func writeSnapshot(ctx context.Context, file loader.DataFile, kg *KnowledgeGraph) error {
	wc, err := file.Create(ctx)
	if err != nil {
		return err
	}
	if err := kg.SaveSnapshot(wc); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

func (e *Engine) Graph() *KnowledgeGraph {
	return e.graph
}

func (e *Engine) Predictions() *Predictions {
	return e.predictions
}

func (e *Engine) Indications() Indications {
	return e.indications
}

// KnownDrugs returns the drugs with a rev_indication edge into diseaseID.
func (e *Engine) KnownDrugs(diseaseID string) map[string]struct{} {
	known := make(map[string]struct{})
	for _, edge := range e.graph.InEdges(diseaseID) {
		if edge.Relation == common.RelationRevIndication {
			known[edge.Source] = struct{}{}
		}
	}
	return known
}

// QueryDiseases lists every disease node and whether it already has an
// approved treatment.
func (e *Engine) QueryDiseases() []common.DiseaseStatus {
	diseases := e.graph.NodesOfType(common.NodeTypeDisease)
	out := make([]common.DiseaseStatus, 0, len(diseases))
	for _, d := range diseases {
		out = append(out, common.DiseaseStatus{ID: d.ID, Treatable: len(e.KnownDrugs(d.ID)) > 0})
	}
	return out
}

// QueryPredictedDrugs ranks the drugs predicted for diseaseID. n <= 0 uses
// the configured limit.
func (e *Engine) QueryPredictedDrugs(diseaseID string, n int) []common.DrugPrediction {
	if n <= 0 {
		n = e.settings.PredictionLimit
	}
	out, _ := TopDrugs(e.predictions, e.indications, diseaseID, n, func(id string) (map[string]struct{}, error) {
		return e.KnownDrugs(id), nil
	})
	return out
}

// QueryAttention returns the attention paths rooted at id.
func (e *Engine) QueryAttention(ctx context.Context, id, nodeType string) ([]common.AttentionPath, error) {
	return Attention(ctx, e.graph.Source(), id, nodeType, e.settings.attention())
}

// QueryAttentionPair explains the prediction of drugID for diseaseID.
func (e *Engine) QueryAttentionPair(ctx context.Context, diseaseID, drugID string) (*common.AttentionPair, error) {
	return AttentionPair(ctx, e.graph.Source(), diseaseID, drugID, PairOptions{
		AttentionOptions: e.settings.attention(),
		PathLimit:        e.settings.PathLimit,
	})
}

// DiseaseProteins lists the gene/protein nodes linked to diseaseID.
func (e *Engine) DiseaseProteins(ctx context.Context, diseaseID string) ([]string, error) {
	return neighboursVia(ctx, e.graph.Source(), diseaseID, common.RelationDiseaseProtein)
}

// DrugTargets lists the gene/protein nodes targeted by drugID.
func (e *Engine) DrugTargets(ctx context.Context, drugID string) ([]string, error) {
	return neighboursVia(ctx, e.graph.Source(), drugID, common.RelationDrugProtein)
}

func (e *Engine) Stats() common.GraphStats {
	return common.GraphStats{
		Nodes:       e.graph.NodeCount(),
		Edges:       e.graph.EdgeCount(),
		Diseases:    e.predictions.Len(),
		Indications: len(e.indications),
	}
}
