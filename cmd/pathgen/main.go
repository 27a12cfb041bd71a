// Command pathgen writes the meta-path table of predicted disease/drug pairs
// without going through the job queue.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/txgnn-explorer/backend/internal/config"
	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/logger/console"
	"github.com/txgnn-explorer/backend/pkg/pathgen"

	"github.com/spf13/cobra"
)

type pathgenFlags struct {
	out        string
	diseases   []string
	topN       int
	depth      int
	layer      int
	enrichment bool
	workers    int
	debug      bool
}

func main() {
	util.LoadEnv()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &pathgenFlags{}

	cmd := &cobra.Command{
		Use:   "pathgen",
		Short: "Generate disease/drug meta paths from the attention graph",
		Long: `Explains the best predicted drugs of each disease with attention paths
through the knowledge graph and writes one row per meta path to a CSV file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: flags.debug}))
			return run(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.out, "out", "o", "meta_paths.csv", "output CSV file, - for stdout")
	f.StringSliceVarP(&flags.diseases, "disease", "d", nil, "disease ids, all diseases with predictions when empty")
	f.IntVar(&flags.topN, "top", pathgen.DefaultTopN, "predicted drugs per disease")
	f.IntVar(&flags.depth, "depth", pathgen.DefaultMaxDepth, "maximum path length in edges")
	f.IntVar(&flags.layer, "layer", 0, "attention layer (1, 2 or 0 for both)")
	f.BoolVar(&flags.enrichment, "enrichment", true, "divide weights by their relation average")
	f.IntVar(&flags.workers, "workers", 4, "pairs explained in parallel")
	f.BoolVar(&flags.debug, "debug", util.GetEnvBool("DEBUG", false), "debug logging")

	return cmd
}

func run(ctx context.Context, flags *pathgenFlags) error {
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

	engine, err := graph.LoadEngineWithOptions(ctx, cfg.GraphFiles(dataLoader), cfg.Graph, graph.LoadOptions{Exclude: pathgen.ExcludeCYP})
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	pairs := pathgen.CandidatePairs(engine.Predictions(), flags.diseases, engine.KnownDrugs, flags.topN)
	logger.Info("Generating meta paths", "pairs", len(pairs))

	rows, err := pathgen.Generate(ctx, engine.Graph(), pairs, pathgen.Options{
		MaxDepth:   flags.depth,
		Layer:      flags.layer,
		Enrichment: flags.enrichment,
		Workers:    flags.workers,
	})
	if err != nil {
		return fmt.Errorf("generate meta paths: %w", err)
	}

	var w io.Writer = os.Stdout
	if flags.out != "-" {
		f, err := os.Create(flags.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := pathgen.WriteCSV(w, rows); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("Wrote meta paths", "rows", len(rows), "path", flags.out)
	return nil
}
