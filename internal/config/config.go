package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/loader"
	fsloader "github.com/txgnn-explorer/backend/pkg/loader/io"
	s3loader "github.com/txgnn-explorer/backend/pkg/loader/s3"
	"github.com/txgnn-explorer/backend/pkg/logger"
)

const (
	DataSourceFS = "fs"
	DataSourceS3 = "s3"

	DefaultDataFolder = "./txgnn_data_v2"
)

// Artifact names inside the data folder.
const (
	EdgesFile       = "graphmask_output_indication.csv"
	SnapshotFile    = "graph_data.gob"
	PredictionsFile = "filtered_predictions.csv"
	IndicationsFile = "drug_indication_subset.pkl"
	NodeTypesFile   = "node_types.json"
	EdgeTypesFile   = "edge_types.json"
	NodeNamesFile   = "node_name_dict.json"
	DiseaseOptsFile = "disease_options.json"
	DrugTSNEFile    = "drug_tsne.json"
)

// CriticalFiles must exist for the frontend to work.
var CriticalFiles = []string{
	PredictionsFile,
	IndicationsFile,
	NodeTypesFile,
	EdgeTypesFile,
	NodeNamesFile,
	DiseaseOptsFile,
}

// PublicDataFiles may be served as-is under /data.
var PublicDataFiles = []string{
	NodeTypesFile,
	EdgeTypesFile,
	NodeNamesFile,
	DiseaseOptsFile,
	DrugTSNEFile,
}

type Config struct {
	DataFolder string
	FrontRoot  string
	Port       string
	Debug      bool

	DataSource string
	AWSBucket  string
	AWSRegion  string
	AWSURL     string
	AWSKey     string
	AWSSecret  string

	UseNeo4j      bool
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	RedisURL string
	CacheTTL time.Duration

	DatabaseURL  string
	AuthURL      string
	MasterAPIKey string
	ResultsDir   string

	Graph graph.Settings
}

// Load reads the configuration from the environment. A missing data folder
// is looked up one directory above the working directory.
func Load() Config {
	cfg := Config{
		DataFolder: util.GetEnvString("DATA_FOLDER", DefaultDataFolder),
		FrontRoot:  util.GetEnvString("FRONT_ROOT", "./frontend/dist"),
		Port:       util.GetEnvString("PORT", "8080"),
		Debug:      util.GetEnvBool("DEBUG", false),

		DataSource: util.GetEnvString("DATA_SOURCE", DataSourceFS),
		AWSBucket:  util.GetEnvString("AWS_BUCKET", "txgnn"),
		AWSRegion:  util.GetEnvString("AWS_REGION", "us-east-1"),
		AWSURL:     util.GetEnv("AWS_ENDPOINT"),
		AWSKey:     util.GetEnv("AWS_ACCESS_KEY"),
		AWSSecret:  util.GetEnv("AWS_SECRET_KEY"),

		UseNeo4j:      util.GetEnvBool("USE_NEO4J", false),
		Neo4jURI:      util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Neo4jPassword: util.GetEnv("NEO4J_PASSWORD"),
		Neo4jDatabase: util.GetEnv("NEO4J_DATABASE"),

		RedisURL: util.GetEnv("REDIS_URL"),
		CacheTTL: util.GetEnvDuration("CACHE_TTL", time.Hour),

		DatabaseURL:  util.GetEnv("DATABASE_URL"),
		AuthURL:      util.GetEnv("AUTH_URL"),
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		ResultsDir:   util.GetEnvString("RESULTS_DIR", "./results"),

		Graph: graph.Settings{
			RootK:           util.GetEnvInt("ATTENTION_ROOT_K", 5),
			HopK:            util.GetEnvInt("ATTENTION_HOP_K", 5),
			PredictionLimit: util.GetEnvInt("PREDICTION_LIMIT", 200),
			PathLimit:       util.GetEnvInt("ATTENTION_PATH_LIMIT", 0),
		},
	}

	if cfg.DataSource == DataSourceFS {
		cfg.DataFolder = resolveDataFolder(cfg.DataFolder)
	}
	return cfg
}

func resolveDataFolder(dir string) string {
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	parent := filepath.Join("..", filepath.Base(dir))
	if _, err := os.Stat(parent); err == nil {
		logger.Debug("Using data folder from parent directory", "path", parent)
		return parent
	}
	return dir
}

// NewDataLoader returns the loader for the configured data source.
func (c Config) NewDataLoader(ctx context.Context) (loader.DataFileLoader, error) {
	switch c.DataSource {
	case DataSourceFS, "":
		return fsloader.NewFSDataFileLoader(), nil
	case DataSourceS3:
		return s3loader.NewS3DataFileLoader(ctx, s3loader.NewS3DataFileLoaderParams{
			Bucket:    c.AWSBucket,
			Endpoint:  c.AWSURL,
			Region:    c.AWSRegion,
			AccessKey: c.AWSKey,
			SecretKey: c.AWSSecret,
		})
	}
	return nil, fmt.Errorf("unknown data source %q", c.DataSource)
}

// DataFile returns the named artifact of the data folder.
func (c Config) DataFile(name string, l loader.DataFileLoader) loader.DataFile {
	return loader.NewDataFile(c.DataFolder, name, l)
}

// GraphFiles returns the artifacts the query engine loads.
func (c Config) GraphFiles(l loader.DataFileLoader) graph.DataFiles {
	return graph.DataFiles{
		Edges:       c.DataFile(EdgesFile, l),
		Snapshot:    c.DataFile(SnapshotFile, l),
		Predictions: c.DataFile(PredictionsFile, l),
		Indications: c.DataFile(IndicationsFile, l),
	}
}

// ValidatePaths returns the critical files that are missing.
func (c Config) ValidatePaths(ctx context.Context, l loader.DataFileLoader) []string {
	var missing []string
	for _, name := range CriticalFiles {
		if !c.DataFile(name, l).Exists(ctx) {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsPublicDataFile reports whether name may be served under /data.
func IsPublicDataFile(name string) bool {
	for _, f := range PublicDataFiles {
		if f == name {
			return true
		}
	}
	return false
}
