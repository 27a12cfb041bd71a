package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/store"
)

// Neo4jGraphDatabase answers neighbourhood queries with Cypher. Nodes are
// stored as (:Node {id, type, name}) and attention edges as
// [:ATTENTION {relation, layer1_att, layer2_att}]. Node types and relation
// names contain characters that are not valid in labels, so both live in
// properties.
//
// The prediction table and indication subset are flat files and stay in
// memory.
type Neo4jGraphDatabase struct {
	driver      neo4j.DriverWithContext
	database    string
	predictions *graph.Predictions
	indications graph.Indications
	settings    graph.Settings
}

var _ store.GraphDatabase = (*Neo4jGraphDatabase)(nil)

// NewNeo4jGraphDatabaseParams defines the connection and the in-memory
// artifacts of a Neo4jGraphDatabase.
type NewNeo4jGraphDatabaseParams struct {
	URI         string
	User        string
	Password    string
	Database    string
	Predictions *graph.Predictions
	Indications graph.Indications
	Settings    graph.Settings
}

// NewNeo4jGraphDatabase connects to Neo4j and verifies connectivity,
// retrying while the database is starting up.
func NewNeo4jGraphDatabase(ctx context.Context, params NewNeo4jGraphDatabaseParams) (*Neo4jGraphDatabase, error) {
	user := params.User
	if user == "" {
		user = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(user, params.Password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	err = util.RetryErrWithContext(ctx, 5, time.Second, func(ctx context.Context) error {
		return driver.VerifyConnectivity(ctx)
	})
	if err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	return NewWithDriver(driver, params), nil
}

// NewWithDriver wraps an existing driver.
func NewWithDriver(driver neo4j.DriverWithContext, params NewNeo4jGraphDatabaseParams) *Neo4jGraphDatabase {
	predictions := params.Predictions
	if predictions == nil {
		predictions = graph.NewPredictions()
	}
	predictions.Seal()
	indications := params.Indications
	if indications == nil {
		indications = graph.Indications{}
	}
	return &Neo4jGraphDatabase{
		driver:      driver,
		database:    params.Database,
		predictions: predictions,
		indications: indications,
		settings:    params.Settings,
	}
}

func (db *Neo4jGraphDatabase) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, db.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(db.database),
	)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (db *Neo4jGraphDatabase) write(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, db.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(db.database),
		neo4j.ExecuteQueryWithWritersRouting(),
	)
	return err
}

const (
	nodeTypeQuery = `MATCH (n:Node {id: $id}) RETURN n.type AS type LIMIT 1`
	inEdgesQuery  = `MATCH (s:Node)-[r:ATTENTION]->(t:Node {id: $id})
RETURN s.id AS source, t.id AS target, r.relation AS relation,
       r.layer1_att AS layer1_att, r.layer2_att AS layer2_att`
	outEdgesQuery = `MATCH (s:Node {id: $id})-[r:ATTENTION]->(t:Node)
RETURN s.id AS source, t.id AS target, r.relation AS relation,
       r.layer1_att AS layer1_att, r.layer2_att AS layer2_att`
	diseasesQuery = `MATCH (d:Node {type: $disease})
OPTIONAL MATCH (:Node)-[r:ATTENTION {relation: $relation}]->(d)
RETURN d.id AS id, count(r) > 0 AS treatable
ORDER BY id`
	knownDrugsQuery = `MATCH (s:Node)-[:ATTENTION {relation: $relation}]->(:Node {id: $id})
RETURN DISTINCT s.id AS id`
	countsQuery = `MATCH (n:Node) WITH count(n) AS nodes
OPTIONAL MATCH ()-[r:ATTENTION]->()
RETURN nodes, count(r) AS edges`
)

// NodeType implements graph.EdgeSource.
func (db *Neo4jGraphDatabase) NodeType(ctx context.Context, id string) (string, bool, error) {
	records, err := db.run(ctx, nodeTypeQuery, map[string]any{"id": id})
	if err != nil {
		return "", false, fmt.Errorf("node type of %s: %w", id, err)
	}
	if len(records) == 0 {
		return "", false, nil
	}
	t := stringValue(records[0].AsMap(), "type")
	if t == "" {
		t = common.NodeTypeUnknown
	}
	return t, true, nil
}

// InEdges implements graph.EdgeSource.
func (db *Neo4jGraphDatabase) InEdges(ctx context.Context, id string) ([]common.Edge, error) {
	return db.edges(ctx, inEdgesQuery, id)
}

// OutEdges implements graph.EdgeSource.
func (db *Neo4jGraphDatabase) OutEdges(ctx context.Context, id string) ([]common.Edge, error) {
	return db.edges(ctx, outEdgesQuery, id)
}

func (db *Neo4jGraphDatabase) edges(ctx context.Context, cypher, id string) ([]common.Edge, error) {
	records, err := db.run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("edges of %s: %w", id, err)
	}
	out := make([]common.Edge, 0, len(records))
	for _, rec := range records {
		out = append(out, edgeFromValues(rec.AsMap()))
	}
	return out, nil
}

func (db *Neo4jGraphDatabase) QueryDiseases(ctx context.Context) ([]common.DiseaseStatus, error) {
	records, err := db.run(ctx, diseasesQuery, map[string]any{
		"disease":  common.NodeTypeDisease,
		"relation": common.RelationRevIndication,
	})
	if err != nil {
		return nil, fmt.Errorf("query diseases: %w", err)
	}
	out := make([]common.DiseaseStatus, 0, len(records))
	for _, rec := range records {
		values := rec.AsMap()
		treatable, _ := values["treatable"].(bool)
		out = append(out, common.DiseaseStatus{ID: stringValue(values, "id"), Treatable: treatable})
	}
	return out, nil
}

func (db *Neo4jGraphDatabase) knownDrugs(ctx context.Context, diseaseID string) (map[string]struct{}, error) {
	records, err := db.run(ctx, knownDrugsQuery, map[string]any{
		"id":       diseaseID,
		"relation": common.RelationRevIndication,
	})
	if err != nil {
		return nil, fmt.Errorf("known drugs of %s: %w", diseaseID, err)
	}
	known := make(map[string]struct{}, len(records))
	for _, rec := range records {
		known[stringValue(rec.AsMap(), "id")] = struct{}{}
	}
	return known, nil
}

func (db *Neo4jGraphDatabase) QueryPredictedDrugs(ctx context.Context, diseaseID string, n int) ([]common.DrugPrediction, error) {
	if n <= 0 {
		n = db.settings.PredictionLimit
	}
	return graph.TopDrugs(db.predictions, db.indications, diseaseID, n, func(id string) (map[string]struct{}, error) {
		return db.knownDrugs(ctx, id)
	})
}

func (db *Neo4jGraphDatabase) attentionOptions() graph.AttentionOptions {
	return graph.AttentionOptions{RootK: db.settings.RootK, HopK: db.settings.HopK}
}

func (db *Neo4jGraphDatabase) QueryAttention(ctx context.Context, id, nodeType string) ([]common.AttentionPath, error) {
	if id == "" {
		return nil, store.ErrEmptyID
	}
	_, ok, err := db.NodeType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNodeNotFound
	}
	return graph.Attention(ctx, db, id, nodeType, db.attentionOptions())
}

func (db *Neo4jGraphDatabase) QueryAttentionPair(ctx context.Context, diseaseID, drugID string) (*common.AttentionPair, error) {
	if diseaseID == "" || drugID == "" {
		return nil, store.ErrEmptyID
	}
	return graph.AttentionPair(ctx, db, diseaseID, drugID, graph.PairOptions{
		AttentionOptions: db.attentionOptions(),
		PathLimit:        db.settings.PathLimit,
	})
}

func (db *Neo4jGraphDatabase) Stats(ctx context.Context) (common.GraphStats, error) {
	records, err := db.run(ctx, countsQuery, nil)
	if err != nil {
		return common.GraphStats{}, fmt.Errorf("graph stats: %w", err)
	}
	stats := common.GraphStats{
		Diseases:    db.predictions.Len(),
		Indications: len(db.indications),
	}
	if len(records) > 0 {
		values := records[0].AsMap()
		stats.Nodes = int(intValue(values, "nodes"))
		stats.Edges = int(intValue(values, "edges"))
	}
	return stats, nil
}

func (db *Neo4jGraphDatabase) Close(ctx context.Context) error {
	logger.Debug("Closing Neo4j driver")
	return db.driver.Close(ctx)
}

func edgeFromValues(values map[string]any) common.Edge {
	return common.Edge{
		Source:    stringValue(values, "source"),
		Target:    stringValue(values, "target"),
		Relation:  stringValue(values, "relation"),
		Layer1Att: floatValue(values, "layer1_att"),
		Layer2Att: floatValue(values, "layer2_att"),
	}
}

func stringValue(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func floatValue(values map[string]any, key string) float64 {
	switch v := values[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func intValue(values map[string]any, key string) int64 {
	switch v := values[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
