package graph

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/loader"
	csvloader "github.com/txgnn-explorer/backend/pkg/loader/csv"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

// DefaultPredictionLimit is the number of drugs returned per disease.
const DefaultPredictionLimit = 200

// Predictions holds the GNN scores of every drug for every disease.
type Predictions struct {
	byDisease map[string]map[string]float64
	keys      []string
	rows      int
}

func NewPredictions() *Predictions {
	return &Predictions{byDisease: make(map[string]map[string]float64)}
}

// Add records a score. A later row for the same pair overwrites the earlier.
func (p *Predictions) Add(diseaseID, drugID string, score float64) {
	drugs, ok := p.byDisease[diseaseID]
	if !ok {
		drugs = make(map[string]float64)
		p.byDisease[diseaseID] = drugs
		p.keys = nil
	}
	drugs[drugID] = score
	p.rows++
}

// Diseases returns the disease ids with predictions, sorted.
func (p *Predictions) Diseases() []string {
	if p.keys != nil {
		return p.keys
	}
	keys := make([]string, 0, len(p.byDisease))
	for k := range p.byDisease {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Seal caches the sorted disease ids. Call it once loading is done; the
// table is read-only afterwards.
func (p *Predictions) Seal() {
	p.keys = p.Diseases()
}

func (p *Predictions) Len() int {
	return len(p.byDisease)
}

// Resolve maps a requested disease id onto a key of the table. Ids that
// differ only after the first '.' (5044 vs 5044.0) are treated as the same
// disease; the smallest matching key wins.
func (p *Predictions) Resolve(diseaseID string) (string, bool) {
	if diseaseID == "" {
		return "", false
	}
	if _, ok := p.byDisease[diseaseID]; ok {
		return diseaseID, true
	}
	prefix := idPrefix(diseaseID)
	for _, k := range p.Diseases() {
		if idPrefix(k) == prefix {
			return k, true
		}
	}
	return "", false
}

func idPrefix(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// Scores returns the drug scores of a resolved disease id.
func (p *Predictions) Scores(diseaseID string) map[string]float64 {
	return p.byDisease[diseaseID]
}

// Rank returns drugs of diseaseID sorted by score (descending, ties by id),
// keeping only drugs accepted by keep.
func (p *Predictions) Rank(diseaseID string, keep func(drugID string) bool) []common.DrugPrediction {
	scores := p.byDisease[diseaseID]
	out := make([]common.DrugPrediction, 0, len(scores))
	for drug, score := range scores {
		if keep != nil && !keep(drug) {
			continue
		}
		out = append(out, common.DrugPrediction{ID: drug, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// KnownFunc returns the drugs already indicated for a disease.
type KnownFunc func(diseaseID string) (map[string]struct{}, error)

// TopDrugs ranks the predictions of diseaseID restricted to ind (no
// restriction when ind is empty), keeps the first n (n <= 0 selects
// DefaultPredictionLimit) and flags drugs reported by known. An unknown
// disease yields an empty slice.
func TopDrugs(p *Predictions, ind Indications, diseaseID string, n int, known KnownFunc) ([]common.DrugPrediction, error) {
	out := []common.DrugPrediction{}
	key, ok := p.Resolve(diseaseID)
	if !ok {
		return out, nil
	}
	if n <= 0 {
		n = DefaultPredictionLimit
	}

	var keep func(string) bool
	if len(ind) > 0 {
		keep = ind.Contains
	}
	ranked := p.Rank(key, keep)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	flagged := make(map[string]struct{})
	for _, id := range uniqueSorted([]string{diseaseID, key}) {
		drugs, err := known(id)
		if err != nil {
			return nil, err
		}
		for d := range drugs {
			flagged[d] = struct{}{}
		}
	}
	for i := range ranked {
		_, ranked[i].Known = flagged[ranked[i].ID]
	}
	return append(out, ranked...), nil
}

// LoadPredictions reads a disease_id,drug_id,score CSV. Rows without a
// disease or drug id are skipped; a missing score reads as 0.
func LoadPredictions(r io.Reader) (*Predictions, error) {
	cr, err := csvloader.NewReader(r)
	if err != nil {
		return nil, err
	}
	if err := cr.Require("disease_id", "drug_id"); err != nil {
		return nil, err
	}

	p := NewPredictions()
	for {
		rec, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read predictions: %w", err)
		}
		disease, drug := rec.Get("disease_id"), rec.Get("drug_id")
		if disease == "" || drug == "" {
			continue
		}
		p.Add(disease, drug, rec.Float("score"))
	}
	p.Seal()
	return p, nil
}

// Indications is the subset of drugs the explorer is allowed to rank.
type Indications map[string]struct{}

func (ind Indications) Contains(drugID string) bool {
	_, ok := ind[drugID]
	return ok
}

// LoadIndications reads the drug id subset. Pickled Python lists, tuples and
// sets are accepted, as are JSON arrays and plain text with one id per line.
func LoadIndications(r io.Reader, kind loader.DataFileKind) (Indications, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch kind {
	case loader.DataFileKindPickle:
		return indicationsFromPickle(data)
	case loader.DataFileKindJSON:
		var ids []any
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("decode indications: %w", err)
		}
		return indicationsFromValues(ids), nil
	}

	ind := make(Indications)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ind[id] = struct{}{}
		}
	}
	return ind, sc.Err()
}

func indicationsFromPickle(data []byte) (Indications, error) {
	u := pickle.NewUnpickler(bytes.NewReader(data))
	obj, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickle indications: %w", err)
	}

	switch v := obj.(type) {
	case *types.List:
		return indicationsFromValues(*v), nil
	case *types.Tuple:
		return indicationsFromValues(*v), nil
	case *types.Set:
		values := make([]any, 0, len(*v))
		for k := range *v {
			values = append(values, k)
		}
		return indicationsFromValues(values), nil
	case *types.FrozenSet:
		values := make([]any, 0, len(*v))
		for k := range *v {
			values = append(values, k)
		}
		return indicationsFromValues(values), nil
	}
	return nil, fmt.Errorf("unpickle indications: unsupported object %T", obj)
}

func indicationsFromValues(values []any) Indications {
	ind := make(Indications, len(values))
	for _, v := range values {
		var id string
		switch t := v.(type) {
		case string:
			id = t
		case nil:
			continue
		default:
			id = fmt.Sprint(t)
		}
		if id = strings.TrimSpace(id); id != "" {
			ind[id] = struct{}{}
		}
	}
	return ind
}
