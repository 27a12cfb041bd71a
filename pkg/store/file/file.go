package file

import (
	"context"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/store"
)

// FileGraphDatabase serves every query from the data folder loaded into
// memory at startup.
type FileGraphDatabase struct {
	engine *graph.Engine
}

var _ store.GraphDatabase = (*FileGraphDatabase)(nil)

func New(engine *graph.Engine) *FileGraphDatabase {
	return &FileGraphDatabase{engine: engine}
}

// Open loads the artifacts described by files.
func Open(ctx context.Context, files graph.DataFiles, settings graph.Settings) (*FileGraphDatabase, error) {
	engine, err := graph.LoadEngine(ctx, files, settings)
	if err != nil {
		return nil, err
	}
	return New(engine), nil
}

func (db *FileGraphDatabase) Engine() *graph.Engine {
	return db.engine
}

func (db *FileGraphDatabase) QueryDiseases(_ context.Context) ([]common.DiseaseStatus, error) {
	return db.engine.QueryDiseases(), nil
}

func (db *FileGraphDatabase) QueryPredictedDrugs(_ context.Context, diseaseID string, n int) ([]common.DrugPrediction, error) {
	return db.engine.QueryPredictedDrugs(diseaseID, n), nil
}

func (db *FileGraphDatabase) QueryAttention(ctx context.Context, id, nodeType string) ([]common.AttentionPath, error) {
	if id == "" {
		return nil, store.ErrEmptyID
	}
	if !db.engine.Graph().HasNode(id) {
		return nil, store.ErrNodeNotFound
	}
	return db.engine.QueryAttention(ctx, id, nodeType)
}

func (db *FileGraphDatabase) QueryAttentionPair(ctx context.Context, diseaseID, drugID string) (*common.AttentionPair, error) {
	if diseaseID == "" || drugID == "" {
		return nil, store.ErrEmptyID
	}
	return db.engine.QueryAttentionPair(ctx, diseaseID, drugID)
}

func (db *FileGraphDatabase) Stats(_ context.Context) (common.GraphStats, error) {
	return db.engine.Stats(), nil
}

func (db *FileGraphDatabase) Close(_ context.Context) error {
	return nil
}
