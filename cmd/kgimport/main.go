// Command kgimport loads the attention edge table into Neo4j.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/txgnn-explorer/backend/internal/config"
	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/loader"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/logger/console"
	"github.com/txgnn-explorer/backend/pkg/store/neo4j"

	"github.com/spf13/cobra"
)

func main() {
	util.LoadEnv()

	var (
		batch int
		debug bool
	)

	cmd := &cobra.Command{
		Use:          "kgimport",
		Short:        "Import the attention edge table into Neo4j",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: debug}))
			return run(cmd.Context(), batch)
		},
	}
	cmd.Flags().IntVar(&batch, "batch", neo4j.DefaultImportBatch, "rows per UNWIND statement")
	cmd.Flags().BoolVar(&debug, "debug", util.GetEnvBool("DEBUG", false), "debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, batch int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	dataLoader, err := cfg.NewDataLoader(ctx)
	if err != nil {
		return fmt.Errorf("create data loader: %w", err)
	}

	kg, err := graph.LoadGraph(ctx, cfg.DataFile(config.EdgesFile, dataLoader), loader.DataFile{}, graph.LoadOptions{})
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	db, err := neo4j.NewNeo4jGraphDatabase(ctx, neo4j.NewNeo4jGraphDatabaseParams{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		return fmt.Errorf("connect to neo4j: %w", err)
	}
	defer db.Close(context.Background())

	if err := db.Import(ctx, kg, batch); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	logger.Info("Imported graph", "nodes", kg.NodeCount(), "edges", kg.EdgeCount())
	return nil
}
