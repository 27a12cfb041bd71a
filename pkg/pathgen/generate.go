package pathgen

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// LabelPredicted marks pairs taken from the prediction ranking.
const LabelPredicted = "Predicted Drugs"

// DefaultTopN is the number of unknown drugs explained per disease.
const DefaultTopN = 200

// Pair is a disease/drug combination to explain.
type Pair struct {
	Disease string
	Drug    string
	Label   string
}

// CandidatePairs returns, for every disease (all diseases with predictions
// when diseases is empty), the topN best ranked drugs that are not already
// indicated for it.
func CandidatePairs(p *graph.Predictions, diseases []string, known func(diseaseID string) map[string]struct{}, topN int) []Pair {
	if topN <= 0 {
		topN = DefaultTopN
	}

	keys := diseases
	if len(keys) == 0 {
		keys = p.Diseases()
	}

	var out []Pair
	for _, requested := range keys {
		key, ok := p.Resolve(requested)
		if !ok {
			logger.Warn("No predictions for disease, skipping", "disease", requested)
			continue
		}
		indicated := map[string]struct{}{}
		if known != nil {
			indicated = known(key)
		}
		ranked := p.Rank(key, func(drug string) bool {
			_, isKnown := indicated[drug]
			return !isKnown
		})
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		for _, r := range ranked {
			out = append(out, Pair{Disease: key, Drug: r.ID, Label: LabelPredicted})
		}
	}
	return out
}

// Row is one line of the generated path table.
type Row struct {
	Disease  string
	Drug     string
	Label    string
	MetaPath string
	Path     string
	Score    float64
	Genes    []string

	GeneOccurrences        map[string]int
	DiseaseGeneOccurrences map[string]int
	DiseasePathCount       int
}

func rowsFor(pair Pair, paths []ScoredPath) []Row {
	rows := make([]Row, 0, len(paths))
	for _, sp := range paths {
		var genes []string
		for _, n := range sp.Path.Nodes {
			if n.Type == common.NodeTypeGeneProtein {
				name := n.Name
				if name == "" {
					name = n.ID
				}
				genes = append(genes, name)
			}
		}
		rows = append(rows, Row{
			Disease:  pair.Disease,
			Drug:     pair.Drug,
			Label:    pair.Label,
			MetaPath: sp.MetaPath,
			Path:     sp.Path.Names(),
			Score:    sp.Score,
			Genes:    genes,
		})
	}
	return rows
}

// Generate explains every pair in parallel and returns the rows in pair
// order, annotated with gene statistics.
func Generate(ctx context.Context, kg *graph.KnowledgeGraph, pairs []Pair, opts Options) ([]Row, error) {
	opts = opts.withDefaults()
	start := time.Now()

	var averages map[string]float64
	if opts.Enrichment {
		averages = RelationAverages(kg, opts.Layer)
	}

	results := make([][]Row, len(pairs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, pair := range pairs {
		g.Go(func() error {
			paths, err := FindPaths(gctx, kg, pair.Disease, pair.Drug, opts)
			if err != nil {
				return fmt.Errorf("paths %s -> %s: %w", pair.Disease, pair.Drug, err)
			}
			results[i] = rowsFor(pair, MetaPaths(paths, averages, opts))

			if n := done.Add(1); n%100 == 0 {
				logger.Info("Path generation progress", "done", n, "total", len(pairs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []Row
	for _, r := range results {
		rows = append(rows, r...)
	}
	GeneStats(rows)

	logger.Duration("Generated meta paths", start, "pairs", len(pairs), "rows", len(rows))
	return rows, nil
}

// GeneStats fills the gene occurrence counts of rows: how many rows mention
// each gene overall and within the row's disease, and how many rows each
// disease has.
func GeneStats(rows []Row) {
	overall := make(map[string]int)
	perDisease := make(map[string]map[string]int)
	pathCount := make(map[string]int)

	for _, r := range rows {
		if perDisease[r.Disease] == nil {
			perDisease[r.Disease] = make(map[string]int)
		}
		for _, g := range r.Genes {
			overall[g]++
			perDisease[r.Disease][g]++
		}
		pathCount[r.Disease]++
	}

	for i := range rows {
		r := &rows[i]
		r.GeneOccurrences = make(map[string]int, len(r.Genes))
		r.DiseaseGeneOccurrences = make(map[string]int, len(r.Genes))
		for _, g := range r.Genes {
			r.GeneOccurrences[g] = overall[g]
			r.DiseaseGeneOccurrences[g] = perDisease[r.Disease][g]
		}
		r.DiseasePathCount = pathCount[r.Disease]
	}
}

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"Disease",
	"Drug",
	"Label",
	"Meta-Path",
	"Path",
	"Score",
	"genes",
	"gene occurences across all paths",
	"gene occurences for this disease",
	"number of paths for this disease",
}

// WriteCSV writes rows with CSVHeader. Gene lists and counts are encoded as
// JSON.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		genes := r.Genes
		if genes == nil {
			genes = []string{}
		}
		record := []string{
			r.Disease,
			r.Drug,
			r.Label,
			r.MetaPath,
			r.Path,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			mustJSON(genes),
			mustJSON(r.GeneOccurrences),
			mustJSON(r.DiseaseGeneOccurrences),
			strconv.Itoa(r.DiseasePathCount),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// ExcludeCYP drops cytochrome P450 genes, which connect almost every drug
// and drown out specific mechanisms.
func ExcludeCYP(n common.Node) bool {
	return strings.Contains(n.Name, "CYP")
}
